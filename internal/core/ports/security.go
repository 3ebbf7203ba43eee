package ports

// SecurityPort encrypts and decrypts sensitive contact data before it
// reaches durable storage. Kept behind an interface so the cipher can be
// swapped without touching repository code.
type SecurityPort interface {
	Encrypt(plaintext []byte) (ciphertext []byte, err error)
	Decrypt(ciphertext []byte) (plaintext []byte, err error)
}
