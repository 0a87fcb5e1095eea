package fetch

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "embed"
	_ "image/jpeg"
	_ "image/png"

	"github.com/yyyoichi/httpcache-go"
	"go.uber.org/zap"
)

//go:embed sample_urls.txt
var sampleURLs []byte

// SpamDatasetURL points at a public mirror of the SMS spam collection.
const SpamDatasetURL = "https://raw.githubusercontent.com/mohitgupta-omg/Kaggle-SMS-Spam-Collection-Dataset-/master/spam.csv"

// SampleURLs parses the embedded sample_urls.txt and returns a slice of URLs.
func SampleURLs() []string {
	var urls []string
	scanner := bufio.NewScanner(strings.NewReader(string(sampleURLs)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
	}
	return urls
}

// rateLimitedClient wraps an HTTP client with rate limiting between requests.
// Thread-safe for concurrent requests
type rateLimitedClient struct {
	client   *http.Client
	interval time.Duration
	lastCall time.Time
	mu       sync.Mutex
}

func newRateLimitedClient(interval time.Duration) *rateLimitedClient {
	return &rateLimitedClient{
		client:   http.DefaultClient,
		interval: interval,
	}
}

func (r *rateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Wait if needed to maintain the interval between requests
	elapsed := time.Since(r.lastCall)
	if elapsed < r.interval {
		time.Sleep(r.interval - elapsed)
	}

	resp, err := r.client.Do(req)
	r.lastCall = time.Now()

	return resp, err
}

// Client downloads sample data through a rate-limited, disk-cached
// HTTP client.
type Client struct {
	client   httpcache.Client
	cacheDir string
	log      *zap.Logger
}

func New(cacheDir string, interval time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	os.MkdirAll(cacheDir, 0755)
	return &Client{
		client: httpcache.Client{
			Client:  newRateLimitedClient(interval),
			Cache:   httpcache.NewStorageCache(cacheDir),
			Handler: httpcache.NewDefaultHandler(),
		},
		cacheDir: cacheDir,
		log:      log,
	}
}

// Image fetches and decodes the image at uri.
func (c *Client) Image(uri string) (image.Image, error) {
	c.log.Debug("fetching image", zap.String("url", uri))
	resp, err := c.client.Get(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// File fetches uri and writes the body to dest, creating parent
// directories as needed. Returns the number of bytes written.
func (c *Client) File(uri, dest string) (int64, error) {
	c.log.Debug("fetching file", zap.String("url", uri), zap.String("dest", dest))
	resp, err := c.client.Get(uri)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

// CachedPath returns the on-disk cache location for uri.
func (c *Client) CachedPath(uri string) string {
	u, _ := url.ParseRequestURI(uri)
	o := httpcache.NewHttpResponseObject(u)
	return filepath.Join(c.cacheDir, o.Key())
}
