// Package adaptive provides AEAD ciphers with hardware-aware selection.
//
// AES-256-GCM is chosen when the CPU accelerates AES, ChaCha20-Poly1305
// otherwise. Ciphertexts carry their random nonce as a prefix.
//
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
