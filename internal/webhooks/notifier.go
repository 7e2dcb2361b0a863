// Package webhooks delivers signed run notifications to client callbacks.
package webhooks

import (
    "bytes"
    "context"
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "fmt"
    "log/slog"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"

    "pdproute/internal/metrics"
)

// Notification is the JSON body posted to a callback.
type Notification struct {
    ID       string `json:"id"`
    Type     string `json:"type"`
    TenantID string `json:"tenantId"`
    TS       string `json:"ts"`
    Data     any    `json:"data"`
}

type Notifier struct {
    HTTP        *http.Client
    MaxAttempts int
    // Backoff returns the wait before retry number attempt (0-based).
    Backoff func(attempt int) time.Duration
    Logger  *slog.Logger
}

func NewNotifier(maxAttempts int, logger *slog.Logger) *Notifier {
    if maxAttempts <= 0 { maxAttempts = 5 }
    if logger == nil { logger = slog.Default() }
    return &Notifier{HTTP: &http.Client{Timeout: 5 * time.Second}, MaxAttempts: maxAttempts, Backoff: nextBackoff, Logger: logger}
}

// Deliver posts one notification, retrying non-2xx answers and transport
// errors until MaxAttempts or ctx ends.
func (n *Notifier) Deliver(ctx context.Context, url, secret, tenantID, eventType string, data any) error {
    body, err := json.Marshal(Notification{
        ID:       uuid.NewString(),
        Type:     eventType,
        TenantID: tenantID,
        TS:       time.Now().UTC().Format(time.RFC3339),
        Data:     data,
    })
    if err != nil { return fmt.Errorf("encode notification: %w", err) }

    var lastErr error
    for attempt := 0; attempt < n.MaxAttempts; attempt++ {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(n.Backoff(attempt - 1)):
            }
        }
        code, err := n.post(ctx, url, secret, eventType, attempt, body)
        if err == nil && code >= 200 && code < 300 {
            return nil
        }
        if err == nil { err = fmt.Errorf("callback answered %d", code) }
        lastErr = err
        n.Logger.Warn("callback delivery failed", "url", url, "event", eventType, "attempt", attempt+1, "err", err)
    }
    metrics.WebhookDeliveries.WithLabelValues(eventType, "dead").Inc()
    return fmt.Errorf("deliver %s after %d attempts: %w", eventType, n.MaxAttempts, lastErr)
}

func (n *Notifier) post(ctx context.Context, url, secret, eventType string, attempt int, body []byte) (int, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
    if err != nil { return 0, err }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Event-Type", eventType)
    req.Header.Set("X-Delivery-Attempt", strconv.Itoa(attempt+1))
    if secret != "" {
        req.Header.Set("X-Signature", SignHMAC(secret, body))
    }
    start := time.Now()
    resp, err := n.HTTP.Do(req)
    status := "error"
    code := 0
    if err == nil {
        code = resp.StatusCode
        _ = resp.Body.Close()
        status = strconv.Itoa(code)
    }
    metrics.WebhookDeliveries.WithLabelValues(eventType, status).Inc()
    metrics.WebhookLatency.WithLabelValues(eventType, status).Observe(float64(time.Since(start).Milliseconds()))
    return code, err
}

func nextBackoff(attempts int) time.Duration {
    if attempts < 0 { attempts = 0 }
    if attempts > 10 { attempts = 10 }
    base := time.Second * time.Duration(1<<attempts)
    if base > time.Minute { base = time.Minute }
    return base
}

const sigPrefix = "sha256="

// SignHMAC returns "sha256=" followed by lowercase hex of HMAC-SHA256.
func SignHMAC(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC checks a signature produced by SignHMAC.
func VerifyHMAC(secret string, body []byte, provided string) bool {
    hexSig, ok := strings.CutPrefix(provided, sigPrefix)
    if !ok {
        return false
    }
    b, err := hex.DecodeString(hexSig)
    if err != nil {
        return false
    }
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hmac.Equal(mac.Sum(nil), b)
}
