// Package password hashes and verifies credential secrets with argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash are unpadded standard base64. Padded values are accepted on
// verification.
//
// Parameters travel with the hash, so a hash produced under an older
// configuration still verifies. [Argon2.NeedsUpgrade] reports when a stored
// hash is weaker than the current configuration.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. It never stores secrets,
// never imports other tokenauth packages and never logs input.
package password
