package utils_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"chainflow-backend/pkg/utils"
)

var _ = Describe("SecretCipher", func() {
	It("round trips an encrypted secret", func() {
		c, err := utils.NewSecretCipher("master-key")
		Expect(err).NotTo(HaveOccurred())

		sealed, err := c.Encrypt("s3cr3t")
		Expect(err).NotTo(HaveOccurred())
		Expect(sealed).NotTo(Equal("s3cr3t"))
		Expect(utils.IsEncryptedSecret(sealed)).To(BeTrue())

		opened, err := c.Decrypt(sealed)
		Expect(err).NotTo(HaveOccurred())
		Expect(opened).To(Equal("s3cr3t"))
	})

	It("does not encrypt twice", func() {
		c, _ := utils.NewSecretCipher("master-key")
		sealed, _ := c.Encrypt("value")
		again, err := c.Encrypt(sealed)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(Equal(sealed))
	})

	It("treats unprefixed values as plaintext", func() {
		c, _ := utils.NewSecretCipher("master-key")
		opened, err := c.Decrypt("plain")
		Expect(err).NotTo(HaveOccurred())
		Expect(opened).To(Equal("plain"))
	})

	It("fails to open with a different key", func() {
		a, _ := utils.NewSecretCipher("key-a")
		b, _ := utils.NewSecretCipher("key-b")
		sealed, _ := a.Encrypt("value")

		_, err := b.Decrypt(sealed)
		Expect(err).To(MatchError(utils.ErrSecretDecrypt))
	})

	It("passes values through without a master key", func() {
		c, err := utils.NewSecretCipher("")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Enabled()).To(BeFalse())

		sealed, err := c.Encrypt("value")
		Expect(err).NotTo(HaveOccurred())
		Expect(sealed).To(Equal("value"))
	})
})
