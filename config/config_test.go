package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/subwatch/config"
	"github.com/angeloszaimis/subwatch/internal/model"
)

var _ = Describe("Config", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
		os.Unsetenv("PROBE_CONCURRENCY")
		os.Unsetenv("ALERT_TRANSPORT")
		os.Unsetenv("ALERT_TELEGRAM_TOKEN")
		os.Unsetenv("ALERT_TELEGRAM_CHAT_ID")
	})

	writeConfig := func(content string) string {
		path := filepath.Join(tempDir, "config.yaml")
		Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
		return path
	}

	Describe("Load", func() {
		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Environment).To(Equal(config.EnvDev))
				Expect(cfg.Files.Hosts).To(Equal("subdomains.txt"))
				Expect(cfg.Files.Result).To(Equal("result.json"))
				Expect(cfg.Files.History).To(Equal("log.json"))
				Expect(cfg.Store.Backend).To(Equal(config.BackendJSON))
				Expect(cfg.Probe.Concurrency).To(Equal(100))
				Expect(cfg.Probe.Timeout).To(Equal(5 * time.Second))
				Expect(cfg.Probe.SchemeList()).To(Equal([]model.Scheme{model.SchemeHTTP, model.SchemeHTTPS}))
				Expect(cfg.Probe.FailureKinds()).To(ConsistOf(model.FailureDNS, model.FailureConnection))
				Expect(cfg.Probe.KeyMode()).To(Equal(model.KeyByHost))
				Expect(cfg.Alert.Transport).To(Equal(config.TransportLog))
				Expect(cfg.Alert.BatchSize).To(Equal(15))
				Expect(cfg.Alert.Breaker.ResetTimeout).To(Equal(30 * time.Second))
			})
		})

		Context("with a config file", func() {
			var path string

			BeforeEach(func() {
				path = writeConfig(`
environment: prod
logging:
  level: debug
files:
  hosts: /data/hosts.txt
store:
  backend: sqlite
  sqlite_path: /data/subwatch.db
probe:
  concurrency: 20
  timeout: 2s
  schemes: [https]
  key_by: target
alert:
  batch_size: 5
`)
			})

			It("should read every section", func() {
				cfg, err := config.Load([]string{"--config", path})
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Environment).To(Equal(config.EnvProd))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelDebug))
				Expect(cfg.Files.Hosts).To(Equal("/data/hosts.txt"))
				Expect(cfg.Files.History).To(Equal("log.json"))
				Expect(cfg.Store.Backend).To(Equal(config.BackendSQLite))
				Expect(cfg.Probe.Concurrency).To(Equal(20))
				Expect(cfg.Probe.Timeout).To(Equal(2 * time.Second))
				Expect(cfg.Probe.SchemeList()).To(Equal([]model.Scheme{model.SchemeHTTPS}))
				Expect(cfg.Probe.KeyMode()).To(Equal(model.KeyByTarget))
				Expect(cfg.Alert.BatchSize).To(Equal(5))
			})

			It("should let flags override the file", func() {
				cfg, err := config.Load([]string{"--config", path, "--hosts", "other.txt", "--log-level", "warn"})
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Files.Hosts).To(Equal("other.txt"))
				Expect(cfg.Logging.Level).To(Equal(config.LogLevelWarn))
			})

			It("should let environment variables override the file", func() {
				os.Setenv("PROBE_CONCURRENCY", "7")
				cfg, err := config.Load([]string{"--config", path})
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Probe.Concurrency).To(Equal(7))
			})
		})

		Context("with environment variables", func() {
			It("should configure the telegram transport", func() {
				os.Setenv("ALERT_TRANSPORT", "telegram")
				os.Setenv("ALERT_TELEGRAM_TOKEN", "123:abc")
				os.Setenv("ALERT_TELEGRAM_CHAT_ID", "-100")

				cfg, err := config.Load(nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Alert.Transport).To(Equal(config.TransportTelegram))
				Expect(cfg.Alert.Telegram.Token).To(Equal("123:abc"))
				Expect(cfg.Alert.Telegram.ChatID).To(Equal("-100"))
			})

			It("should reject telegram without credentials", func() {
				os.Setenv("ALERT_TRANSPORT", "telegram")
				_, err := config.Load(nil)
				Expect(err).To(HaveOccurred())
			})
		})

		It("should fail on an unreadable config file", func() {
			path := writeConfig("probe: [unbalanced")
			_, err := config.Load([]string{"--config", path})
			Expect(err).To(HaveOccurred())
		})

		It("should fail on unknown flags", func() {
			_, err := config.Load([]string{"--bogus"})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			var err error
			cfg, err = config.Load(nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should accept the defaults", func() {
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject an unknown environment", func() {
			cfg.Environment = "qa"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown log level", func() {
			cfg.Logging.Level = "verbose"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a zero concurrency", func() {
			cfg.Probe.Concurrency = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown scheme", func() {
			cfg.Probe.Schemes = []string{"ftp"}
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown failure kind", func() {
			cfg.Probe.SuppressFailures = []string{"dns", "cosmic-rays"}
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject an unknown key mode", func() {
			cfg.Probe.KeyBy = "url"
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should reject a zero batch size", func() {
			cfg.Alert.BatchSize = 0
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should require a sqlite path for the sqlite backend", func() {
			cfg.Store.Backend = config.BackendSQLite
			cfg.Store.SQLitePath = ""
			Expect(cfg.Validate()).NotTo(Succeed())
		})

		It("should require valid brokers for kafka", func() {
			cfg.Alert.Transport = config.TransportKafka
			cfg.Alert.Kafka.Brokers = nil
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Alert.Kafka.Brokers = []string{"not a broker"}
			Expect(cfg.Validate()).NotTo(Succeed())

			cfg.Alert.Kafka.Brokers = []string{"localhost:9092"}
			Expect(cfg.Validate()).To(Succeed())
		})
	})
})
