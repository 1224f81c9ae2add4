// Package auth stores the optional API session cookie.
//
// Credentials are kept in the system keychain when one is reachable and in
// an encrypted cookie vault otherwise. The vault seals each account's
// cookie and user agent separately under a PBKDF2-derived AES-GCM key.
// WBSCRAPER_COOKIE in the environment always wins over stored accounts.
package auth
