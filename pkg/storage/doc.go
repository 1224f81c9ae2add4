// Package storage keeps downloaded images on disk.
//
// ImageStore names every image {post_id}_{index}.{ext} and treats an existing
// file with that name as already downloaded, which makes repeated runs cheap.
// Files are written through a temporary file and renamed into place, so an
// interrupted download never leaves a partial image under its final name.
//
//	store, err := storage.NewImageStore("weibo_output/images", client, log)
//	res, err := store.Save(ctx, url, "5001", "1")
//	// res.Filename == "5001_1.jpg"
//
// WriteFileAtomic and WriteAtomic expose the same write path to the report,
// dataset and archive writers.
package storage
