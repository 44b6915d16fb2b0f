package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/subwatch/internal/notify"
)

var _ = Describe("TelegramTransport", func() {
	var (
		server   *httptest.Server
		path     string
		payload  map[string]string
		texts    []string
		response int
	)

	BeforeEach(func() {
		response = http.StatusOK
		payload = nil
		texts = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(json.NewDecoder(r.Body).Decode(&payload)).To(Succeed())
			texts = append(texts, payload["text"])
			w.WriteHeader(response)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("should post the text to the bot endpoint", func() {
		t := notify.NewTelegram(server.URL+"/", "TOKEN", "42", time.Second)

		Expect(t.Send(context.Background(), "[http://a.com] : [200]")).To(Succeed())
		Expect(path).To(Equal("/botTOKEN/sendMessage"))
		Expect(payload).To(Equal(map[string]string{
			"chat_id": "42",
			"text":    "[http://a.com] : [200]",
		}))
	})

	It("should split a batch over the message size limit", func() {
		t := notify.NewTelegram(server.URL, "TOKEN", "42", time.Second)
		line := "[https://" + strings.Repeat("a", 253) + "]: [unknown] ---> [200]"
		lines := make([]string, 15)
		for i := range lines {
			lines[i] = line
		}

		Expect(t.Send(context.Background(), strings.Join(lines, "\n"))).To(Succeed())
		Expect(len(texts)).To(BeNumerically(">", 1))
		for _, text := range texts {
			Expect(len(text)).To(BeNumerically("<=", notify.MaxTelegramText))
		}
		Expect(strings.Join(texts, "\n")).To(Equal(strings.Join(lines, "\n")))
	})

	It("should fail on a non-2xx reply", func() {
		response = http.StatusTooManyRequests
		t := notify.NewTelegram(server.URL, "TOKEN", "42", time.Second)

		err := t.Send(context.Background(), "text")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("429"))
	})

	It("should refuse an empty message", func() {
		t := notify.NewTelegram(server.URL, "TOKEN", "42", time.Second)
		Expect(t.Send(context.Background(), "")).To(MatchError(notify.ErrEmptyMessage))
	})

	It("should require credentials", func() {
		Expect(notify.NewTelegram("", "", "42", 0).Validate()).NotTo(Succeed())
		Expect(notify.NewTelegram("", "TOKEN", "42", 0).Validate()).To(Succeed())
	})
})

var _ = Describe("LogTransport", func() {
	It("should write the batch to the logger", func() {
		var buf bytes.Buffer
		t := notify.NewLogTransport(slog.New(slog.NewJSONHandler(&buf, nil)))

		Expect(t.Send(context.Background(), "line one\nline two")).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(`"text":"line one\nline two"`))
		Expect(t.Name()).To(Equal("log"))
	})

	It("should refuse an empty message", func() {
		t := notify.NewLogTransport(slog.New(slog.NewTextHandler(io.Discard, nil)))
		Expect(t.Send(context.Background(), "")).To(MatchError(notify.ErrEmptyMessage))
	})
})
