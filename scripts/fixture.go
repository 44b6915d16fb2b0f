//go:build ignore

// Fixture starts local HTTP servers that answer every request with a fixed
// status, and writes a host list pointing at them, so a subwatch run can be
// exercised without touching real sites.
//
// Usage:
//
//	go run fixture.go -ports 8081=200,8082=404,8083=503 -hosts subdomains.txt
//
// Send SIGHUP to rotate the statuses one position, which makes the next
// subwatch run report a change for every host.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

type fixture struct {
	mutex    sync.RWMutex
	ports    []int
	statuses []int
}

func (f *fixture) status(i int) int {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.statuses[i]
}

func (f *fixture) rotate() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if len(f.statuses) < 2 {
		return
	}
	f.statuses = append(f.statuses[1:], f.statuses[0])
	log.Printf("rotated statuses: %v", f.statuses)
}

func parsePorts(spec string) (*fixture, error) {
	f := &fixture{}
	for _, pair := range strings.Split(spec, ",") {
		port, code, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q, want port=status", pair)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", port, err)
		}
		c, err := strconv.Atoi(code)
		if err != nil || c < 100 || c > 599 {
			return nil, fmt.Errorf("invalid status %q", code)
		}
		f.ports = append(f.ports, p)
		f.statuses = append(f.statuses, c)
	}
	return f, nil
}

func main() {
	ports := flag.String("ports", "8081=200,8082=404,8083=503", "comma-separated port=status pairs")
	hostsPath := flag.String("hosts", "subdomains.txt", "host list to write")
	flag.Parse()

	f, err := parsePorts(*ports)
	if err != nil {
		log.Fatal(err)
	}

	var lines []string
	for i, port := range f.ports {
		lines = append(lines, fmt.Sprintf("127.0.0.1:%d", port))

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			code := f.status(i)
			log.Printf("request: port=%d path=%s status=%d", port, r.URL.Path, code)
			w.WriteHeader(code)
		})

		go func() {
			if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
				log.Fatalf("port %d: %v", port, err)
			}
		}()
	}

	if err := os.WriteFile(*hostsPath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		log.Fatalf("write host list: %v", err)
	}
	log.Printf("serving %d fixtures, host list written to %s", len(lines), *hostsPath)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, os.Interrupt, syscall.SIGTERM)
	for s := range sig {
		if s != syscall.SIGHUP {
			return
		}
		f.rotate()
	}
}
