package hostlist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/angeloszaimis/subwatch/internal/model"
)

// ErrNoHosts is returned when a host list contains no usable entries.
var ErrNoHosts = errors.New("host list is empty")

// Normalize turns a raw host list line into a bare host.
// It trims whitespace and strips at most one leading scheme prefix.
// ok is false for blank lines and comments.
func Normalize(line string) (host model.Host, ok bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "#") {
		return "", false
	}

	if rest, found := strings.CutPrefix(s, "https://"); found {
		s = rest
	} else if rest, found := strings.CutPrefix(s, "http://"); found {
		s = rest
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	return model.Host(s), true
}

// Parse reads newline-delimited hosts from r. Duplicates are dropped,
// keeping the first occurrence.
func Parse(r io.Reader) ([]model.Host, error) {
	var hosts []model.Host
	seen := make(map[model.Host]struct{})

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		host, ok := Normalize(scanner.Text())
		if !ok {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read host list: %w", err)
	}

	if len(hosts) == 0 {
		return nil, ErrNoHosts
	}

	return hosts, nil
}

// Load reads the host list file at path.
func Load(path string) ([]model.Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open host list %q: %w", path, err)
	}
	defer f.Close()

	hosts, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hosts, nil
}

// Targets derives one probe target per host for scheme, in host order.
func Targets(hosts []model.Host, scheme model.Scheme) []model.Target {
	targets := make([]model.Target, 0, len(hosts))
	for _, h := range hosts {
		targets = append(targets, model.NewTarget(h, scheme))
	}
	return targets
}
