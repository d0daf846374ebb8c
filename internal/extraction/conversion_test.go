package extraction

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodeTestImage(encode func(*bytes.Buffer, image.Image) error) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	var buf bytes.Buffer
	Expect(encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("NormalizeImage", func() {
	It("re-encodes a camera JPEG as PNG", func() {
		src := encodeTestImage(func(buf *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
		})

		out, mimeType, err := NormalizeImage(src, "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(mimeType).To(Equal("image/png"))

		decoded, err := png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded.Bounds().Dx()).To(Equal(8))
	})

	It("accepts PNG input", func() {
		src := encodeTestImage(func(buf *bytes.Buffer, img image.Image) error {
			return png.Encode(buf, img)
		})

		_, mimeType, err := NormalizeImage(src, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(mimeType).To(Equal("image/png"))
	})

	It("assumes JPEG when the content type is missing", func() {
		src := encodeTestImage(func(buf *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(buf, img, nil)
		})

		_, _, err := NormalizeImage(src, "")
		Expect(err).NotTo(HaveOccurred())
	})

	It("errors on undecodable bytes", func() {
		_, _, err := NormalizeImage([]byte("not an image"), "image/jpeg")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("isHEIC", func() {
	It("trusts an explicit HEIC content type", func() {
		Expect(isHEIC(nil, "image/heic")).To(BeTrue())
		Expect(isHEIC(nil, "image/heif")).To(BeTrue())
	})

	It("sniffs the ftyp brand when the type is generic", func() {
		header := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEIC(header, "application/octet-stream")).To(BeTrue())
	})

	It("rejects non-HEIC data", func() {
		Expect(isHEIC([]byte("\xff\xd8\xff\xe0 jpeg header bytes"), "image/jpeg")).To(BeFalse())
		Expect(isHEIC([]byte("tiny"), "")).To(BeFalse())
	})
})
