package config

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func validConfig() Config {
	return Config{
		Device:             "/dev/video0",
		HighWidth:          1920,
		HighHeight:         1080,
		DetectWidth:        320,
		DetectHeight:       240,
		FPS:                15,
		MotionThreshold:    1500,
		StableFrames:       15,
		CaptureInterval:    3 * time.Second,
		ShotsDir:           "./shots",
		QueueSize:          8,
		Workers:            2,
		RecognitionTimeout: 2 * time.Minute,
		Extractor:          "ollama",
		OllamaURL:          "http://localhost:11434",
		OllamaModel:        "qwen2.5vl",
		DBPath:             "invoice-scanner.db",
		XLSXPath:           "invoices.xlsx",
		PreviewAddr:        ":8080",
	}
}

var _ = Describe("Config", func() {
	It("accepts the default configuration", func() {
		Expect(validConfig().Validate()).To(Succeed())
	})

	DescribeTable("rejecting invalid configurations",
		func(mutate func(*Config), fragment string) {
			cfg := validConfig()
			mutate(&cfg)
			Expect(cfg.Validate()).To(MatchError(ContainSubstring(fragment)))
		},
		Entry("missing device", func(c *Config) { c.Device = "" }, "camera device"),
		Entry("zero capture width", func(c *Config) { c.HighWidth = 0 }, "capture resolution"),
		Entry("zero detect height", func(c *Config) { c.DetectHeight = 0 }, "detect resolution"),
		Entry("zero fps", func(c *Config) { c.FPS = 0 }, "fps"),
		Entry("negative motion threshold", func(c *Config) { c.MotionThreshold = -1 }, "motion threshold"),
		Entry("zero stable frames", func(c *Config) { c.StableFrames = 0 }, "stable frames"),
		Entry("zero capture interval", func(c *Config) { c.CaptureInterval = 0 }, "capture interval"),
		Entry("zero queue size", func(c *Config) { c.QueueSize = 0 }, "queue size"),
		Entry("zero workers", func(c *Config) { c.Workers = 0 }, "workers"),
		Entry("zero recognition timeout", func(c *Config) { c.RecognitionTimeout = 0 }, "recognition timeout"),
		Entry("unknown extractor", func(c *Config) { c.Extractor = "gpt" }, "extractor"),
		Entry("missing shots dir", func(c *Config) { c.ShotsDir = "" }, "shots directory"),
		Entry("missing db path", func(c *Config) { c.DBPath = "" }, "database path"),
		Entry("missing xlsx path", func(c *Config) { c.XLSXPath = "" }, "xlsx path"),
	)

	It("allows a motion threshold of zero", func() {
		cfg := validConfig()
		cfg.MotionThreshold = 0
		Expect(cfg.Validate()).To(Succeed())
	})
})
