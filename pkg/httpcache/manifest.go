package httpcache

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const manifestSignature = "CACHE MANIFEST"

// ErrInvalidManifest is returned when a document is not a cache manifest.
var ErrInvalidManifest = errors.New("httpcache: invalid manifest")

// Manifest is a parsed cache manifest.
type Manifest struct {
	// Cache lists resources to download, in document order.
	Cache []string

	// Network lists resources that always go to the network.
	Network []string

	// Fallback maps a URL prefix to the resource served in its place.
	Fallback map[string]string

	// Settings holds SETTINGS lines verbatim.
	Settings []string
}

type section int

const (
	sectionCache section = iota
	sectionNetwork
	sectionFallback
	sectionSettings
	sectionUnknown
)

// ParseManifest reads a manifest from r.
func ParseManifest(r io.Reader) (*Manifest, error) {
	scanner := bufio.NewScanner(r)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return nil, fmt.Errorf("%w: empty document", ErrInvalidManifest)
	}
	first := strings.TrimPrefix(scanner.Text(), "\ufeff")
	if !strings.HasPrefix(first, manifestSignature) {
		return nil, fmt.Errorf("%w: missing %q signature", ErrInvalidManifest, manifestSignature)
	}
	if rest := first[len(manifestSignature):]; rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return nil, fmt.Errorf("%w: missing %q signature", ErrInvalidManifest, manifestSignature)
	}

	m := &Manifest{Fallback: make(map[string]string)}
	current := sectionCache
	seen := make(map[string]bool)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch line {
		case "CACHE:":
			current = sectionCache
			continue
		case "NETWORK:":
			current = sectionNetwork
			continue
		case "FALLBACK:":
			current = sectionFallback
			continue
		case "SETTINGS:":
			current = sectionSettings
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.ContainsAny(line, " \t/") {
			// Unknown section headers are skipped until the next known one.
			current = sectionUnknown
			continue
		}

		fields := strings.Fields(line)
		switch current {
		case sectionCache:
			if !seen[fields[0]] {
				seen[fields[0]] = true
				m.Cache = append(m.Cache, fields[0])
			}
		case sectionNetwork:
			m.Network = append(m.Network, fields[0])
		case sectionFallback:
			if len(fields) >= 2 {
				m.Fallback[fields[0]] = fields[1]
			}
		case sectionSettings:
			m.Settings = append(m.Settings, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return m, nil
}

// Resolve returns the CACHE entries as absolute URLs relative to base.
func (m *Manifest) Resolve(base string) ([]string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	out := make([]string, 0, len(m.Cache))
	for _, entry := range m.Cache {
		ref, err := url.Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: bad entry %q: %v", ErrInvalidManifest, entry, err)
		}
		abs := baseURL.ResolveReference(ref)
		abs.Fragment = ""
		out = append(out, abs.String())
	}
	return out, nil
}
