package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sources enumerates the origins proxies are loaded from. Inline entries and
// the local file are static sources; the remote URL is fetched at load time.
type Sources struct {
	Inline    []string
	FilePath  string
	RemoteURL string
}

// Loader reads proxy candidates from the configured sources
type Loader struct {
	logger     *logrus.Logger
	httpClient *http.Client
}

// NewLoader creates a source loader
func NewLoader(logger *logrus.Logger) *Loader {
	return &Loader{
		logger: logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load collects proxies from all configured sources. Static sources are
// merged first and shuffled so that independent runs do not all start on the
// same relay; the remote list is appended afterward. Malformed lines are
// logged and dropped, source errors are non-fatal as long as any source
// produced proxies.
func (loader *Loader) Load(ctx context.Context, sources Sources) ([]*Proxy, error) {
	static := loader.parseLines(sources.Inline, "inline")

	if sources.FilePath != "" {
		fromFile, err := loader.loadFile(sources.FilePath)
		if err != nil {
			if !os.IsNotExist(err) {
				loader.logger.Errorf("Error loading proxy file %s: %v", sources.FilePath, err)
			}
		} else {
			static = append(static, fromFile...)
		}
	}

	rand.Shuffle(len(static), func(i, j int) {
		static[i], static[j] = static[j], static[i]
	})

	proxies := static

	if sources.RemoteURL != "" {
		remote, err := loader.loadRemote(ctx, sources.RemoteURL)
		if err != nil {
			loader.logger.Errorf("Failed to fetch proxies from %s: %v", sources.RemoteURL, err)
			if len(proxies) == 0 {
				return nil, err
			}
		} else {
			loader.logger.Infof("Fetched %d proxies from remote source", len(remote))
			proxies = append(proxies, remote...)
		}
	}

	loader.logger.Infof("Loaded %d proxies", len(proxies))
	return proxies, nil
}

// loadFile reads one proxy per line from a local file
func (loader *Loader) loadFile(path string) ([]*Proxy, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	proxies := []*Proxy{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if proxy := loader.parseLine(scanner.Text(), path); proxy != nil {
			proxies = append(proxies, proxy)
		}
	}
	return proxies, scanner.Err()
}

// loadRemote fetches a proxy list over HTTP
func (loader *Loader) loadRemote(ctx context.Context, remoteURL string) ([]*Proxy, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	response, err := loader.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch proxy list: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy source returned status %d", response.StatusCode)
	}

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}

	return loader.parseLines(strings.Split(string(body), "\n"), remoteURL), nil
}

func (loader *Loader) parseLines(lines []string, source string) []*Proxy {
	proxies := []*Proxy{}
	for _, line := range lines {
		if proxy := loader.parseLine(line, source); proxy != nil {
			proxies = append(proxies, proxy)
		}
	}
	return proxies
}

// parseLine parses one candidate line, skipping blanks, comments and the
// "Format:" banner some public lists carry.
func (loader *Loader) parseLine(line, source string) *Proxy {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") || strings.Contains(line, "Format:") {
		return nil
	}

	proxy, err := Parse(line)
	if err != nil {
		loader.logger.Errorf("Error parsing proxy string %q from %s: %v", line, source, err)
		return nil
	}
	return proxy
}
