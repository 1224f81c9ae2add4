// Package pipeline runs one crawl from parameters to files on disk.
//
// A run lays out its output directory as
//
//	{out}/images/{post_id}_{index}.{ext}
//	{out}/reports/{user}_posts_{start}-{end}[_{keywords}].md
//	{out}/reports/{user}_posts_{start}-{end}[_{keywords}].html
//	{out}/data/{user}_posts_{start}-{end}[_{keywords}].json
//	{out}/{user}_{start}-{end}.zip
//
// The data dump and the archive are optional. A run with zero matching
// posts still writes well formed reports.
package pipeline
