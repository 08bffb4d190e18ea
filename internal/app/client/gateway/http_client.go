package gateway

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slog"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

// DigestHeader заголовок с BLAKE2b-256 содержимого загрузки
const DigestHeader = remote.DigestHeader

const (
	requestTimeout  = 30 * time.Second
	transferTimeout = 10 * time.Minute
)

// HTTPClient реализация Gateway поверх HTTP API сервера
type HTTPClient struct {
	client    *http.Client
	transfer  *http.Client
	log       *slog.Logger
	baseURL   string
	userAgent string
}

func NewHTTPClient(baseURL string, log *slog.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConnsPerHost: 10,
	}

	return &HTTPClient{
		client:    &http.Client{Timeout: requestTimeout, Transport: transport},
		transfer:  &http.Client{Timeout: transferTimeout, Transport: transport},
		log:       log.With("component", "gateway"),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "WorkSync-Client/1.0",
	}
}

// Health проверяет доступность сервера
func (h *HTTPClient) Health(ctx context.Context) error {
	resp, err := h.doRequest(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return err
	}

	return h.parseResponse(resp, nil)
}

func (h *HTTPClient) Create(ctx context.Context, t entity.Type, payload entity.Fields) (int64, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/entities/"+string(t), payload)
	if err != nil {
		return 0, err
	}

	var createResp struct {
		ID int64 `json:"id"`
	}
	if err := h.parseResponse(resp, &createResp); err != nil {
		return 0, err
	}
	if createResp.ID == 0 {
		return 0, fmt.Errorf("%w: сервер не вернул id для %s", ErrServer, t)
	}

	return createResp.ID, nil
}

func (h *HTTPClient) Update(ctx context.Context, t entity.Type, remoteID int64, patch entity.Fields) error {
	resp, err := h.doRequest(ctx, http.MethodPatch, entityPath(t, remoteID), patch)
	if err != nil {
		return err
	}

	return h.parseResponse(resp, nil)
}

func (h *HTTPClient) Delete(ctx context.Context, t entity.Type, remoteID int64) error {
	resp, err := h.doRequest(ctx, http.MethodDelete, entityPath(t, remoteID), nil)
	if err != nil {
		return err
	}

	return h.parseResponse(resp, nil)
}

func (h *HTTPClient) RequestUpload(ctx context.Context, fileName, mimeType string) (*UploadTicket, error) {
	req := struct {
		FileName string `json:"file_name"`
		MimeType string `json:"mime_type"`
	}{fileName, mimeType}

	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/uploads", req)
	if err != nil {
		return nil, err
	}

	var ticket UploadTicket
	if err := h.parseResponse(resp, &ticket); err != nil {
		return nil, err
	}
	if ticket.UploadURL == "" || ticket.PublicURL == "" {
		return nil, fmt.Errorf("%w: неполное разрешение на загрузку", ErrServer)
	}

	return &ticket, nil
}

// Transfer выполняет PUT содержимого. Событий не больше 102, поэтому буфер канала никогда не блокирует отправителя
func (h *HTTPClient) Transfer(ctx context.Context, target, mimeType string, data []byte) <-chan TransferEvent {
	events := make(chan TransferEvent, 102)

	go func() {
		defer close(events)

		if err := h.put(ctx, target, mimeType, data, events); err != nil {
			events <- TransferEvent{Err: err}
			return
		}
		events <- TransferEvent{Progress: 100, Done: true}
	}()

	return events
}

func (h *HTTPClient) put(ctx context.Context, target, mimeType string, data []byte, events chan<- TransferEvent) error {
	url := target
	if strings.HasPrefix(target, "/") {
		url = h.baseURL + target
	}

	digest := blake2b.Sum256(data)
	body := newProgressReader(data, events)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set(DigestHeader, hex.EncodeToString(digest[:]))
	req.Header.Set("User-Agent", h.userAgent)

	h.log.Debug("Передача файла",
		"url", url,
		"size", len(data),
		"mime_type", mimeType,
	)

	resp, err := h.transfer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: ошибка передачи файла: %v", ErrUnavailable, err)
	}

	return h.parseResponse(resp, nil)
}

// progressReader сообщает процент прочитанного; 100 отправляется только после ответа сервера
type progressReader struct {
	r      *bytes.Reader
	total  int
	read   int
	last   int
	events chan<- TransferEvent
}

func newProgressReader(data []byte, events chan<- TransferEvent) *progressReader {
	events <- TransferEvent{Progress: 0}
	return &progressReader{
		r:      bytes.NewReader(data),
		total:  len(data),
		events: events,
	}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += n

	if p.total > 0 {
		pct := p.read * 100 / p.total
		if pct > 99 {
			pct = 99
		}
		if pct > p.last {
			p.last = pct
			p.events <- TransferEvent{Progress: pct}
		}
	}

	return n, err
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка выполнения запроса: %v", ErrUnavailable, err)
	}

	return resp, nil
}

func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, body)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("ошибка парсинга ответа: %w", err)
		}
	}

	return nil
}

// statusError понимает problem+json сервера и простой {"error": "..."}
func statusError(code int, body []byte) error {
	var errResp struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
		Error  string `json:"error"`
	}

	se := &StatusError{Code: code}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Detail != "":
			se.Message = errResp.Detail
		case errResp.Error != "":
			se.Message = errResp.Error
		case errResp.Title != "":
			se.Message = errResp.Title
		}
	}

	return se
}

func entityPath(t entity.Type, remoteID int64) string {
	return "/api/v1/entities/" + string(t) + "/" + strconv.FormatInt(remoteID, 10)
}

// IsStatus проверяет код ответа сервера в цепочке ошибок
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
