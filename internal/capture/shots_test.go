package capture

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ShotStore", func() {
	var (
		tmpDir string
		shots  *ShotStore
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		shots, err = NewShotStore(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewShotStore", func() {
		It("creates the directory when missing", func() {
			nested := filepath.Join(tmpDir, "a", "b")
			_, err := NewShotStore(nested)
			Expect(err).NotTo(HaveOccurred())
			Expect(nested).To(BeADirectory())
		})
	})

	Describe("Save", func() {
		It("writes the file and returns its path", func() {
			path, err := shots.Save("shot_one.jpg", []byte("jpeg bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tmpDir, "shot_one.jpg")))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg bytes")))
		})

		It("refuses to overwrite an existing shot", func() {
			_, err := shots.Save("shot_one.jpg", []byte("first"))
			Expect(err).NotTo(HaveOccurred())

			_, err = shots.Save("shot_one.jpg", []byte("second"))
			Expect(err).To(HaveOccurred())

			data, err := shots.Get("shot_one.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("first")))
		})
	})

	Describe("Get", func() {
		It("returns the stored bytes", func() {
			_, err := shots.Save("shot_two.jpg", []byte{0xff, 0xd8, 0xff})
			Expect(err).NotTo(HaveOccurred())

			data, err := shots.Get("shot_two.jpg")
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{0xff, 0xd8, 0xff}))
		})

		It("errors for a missing shot", func() {
			_, err := shots.Get("nope.jpg")
			Expect(err).To(HaveOccurred())
		})
	})
})
