package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
)

const (
	defaultIndexNowEndpoint = "https://api.indexnow.org/indexnow"
	// Protocol limit on urlList length per call.
	indexNowMaxBatch = 10000
	indexNowAuthHint = "publish the key file at https://<host>/<key>.txt and verify it is reachable"
)

// IndexNowConfig holds the shared key and site identity for the multi-URL
// push API. An empty Key disables the adapter.
type IndexNowConfig struct {
	BaseURL     string
	Key         string
	KeyLocation string
	Endpoint    string
	MaxBatch    int
	Timeout     time.Duration
}

// IndexNowAdapter pushes a whole batch of URLs in one call. The outcome is
// batch-granular: when the call fails, none of the batch is confirmed.
type IndexNowAdapter struct {
	config IndexNowConfig
	host   string
	client *fasthttp.Client
	log    *logger.Logger
}

func NewIndexNowAdapter(config IndexNowConfig) *IndexNowAdapter {
	if config.Endpoint == "" {
		config.Endpoint = defaultIndexNowEndpoint
	}
	if config.MaxBatch <= 0 || config.MaxBatch > indexNowMaxBatch {
		config.MaxBatch = indexNowMaxBatch
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	host := ""
	if parsed, err := url.Parse(config.BaseURL); err == nil {
		host = parsed.Host
	}
	if config.KeyLocation == "" && host != "" && config.Key != "" {
		config.KeyLocation = fmt.Sprintf("https://%s/%s.txt", host, config.Key)
	}

	return &IndexNowAdapter{
		config: config,
		host:   host,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 90 * time.Second,
		},
		log: logger.GetLogger().WithField("component", "indexnow_adapter"),
	}
}

func (a *IndexNowAdapter) Service() ledger.Service { return ledger.ServiceIndexNow }

func (a *IndexNowAdapter) Enabled() bool {
	return a.config.Key != "" && a.host != ""
}

func (a *IndexNowAdapter) BatchSize() int { return a.config.MaxBatch }

func (a *IndexNowAdapter) DailyLimit() int { return 0 }

type indexNowPayload struct {
	Host        string   `json:"host"`
	Key         string   `json:"key"`
	KeyLocation string   `json:"keyLocation"`
	URLList     []string `json:"urlList"`
}

// Submit pushes the batch in a single call.
func (a *IndexNowAdapter) Submit(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(urls) > a.config.MaxBatch {
		return fmt.Errorf("%s: batch of %d exceeds limit of %d", a.Service(), len(urls), a.config.MaxBatch)
	}

	body, err := json.Marshal(indexNowPayload{
		Host:        a.host,
		Key:         a.config.Key,
		KeyLocation: a.config.KeyLocation,
		URLList:     urls,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.config.Endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json; charset=utf-8")
	req.SetBody(body)

	if err := a.client.DoTimeout(req, resp, a.config.Timeout); err != nil {
		return fmt.Errorf("%s: request failed: %w", a.Service(), err)
	}

	if err := classifyStatus(a.Service(), resp.StatusCode(), string(resp.Body()), indexNowAuthHint); err != nil {
		return err
	}

	a.log.WithField("url_count", len(urls)).Info("Batch pushed to IndexNow")
	return nil
}
