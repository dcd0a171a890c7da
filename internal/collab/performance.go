package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPPerformanceService calls an external PP calculation service over
// HTTP, the same bare http.Client shape as IP2LocationGeo.
type HTTPPerformanceService struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPPerformanceService builds a PerformanceService against baseURL.
func NewHTTPPerformanceService(baseURL string) *HTTPPerformanceService {
	return &HTTPPerformanceService{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 2 * time.Second},
	}
}

type ppRequest struct {
	BeatmapID     int32   `json:"beatmap_id"`
	Mode          uint8   `json:"mode"`
	Mods          uint32  `json:"mods"`
	MaxCombo      int32   `json:"max_combo"`
	Accuracy      float64 `json:"accuracy"`
	MissCount     int32   `json:"miss_count"`
	PassedObjects int32   `json:"passed_objects"`
}

type ppResponse struct {
	PP       float64 `json:"pp"`
	Stars    float64 `json:"stars"`
	AR       float64 `json:"ar"`
	OD       float64 `json:"od"`
	MaxCombo int32   `json:"max_combo"`
}

// Calculate requests a PP value for the given play. On any failure the
// caller should treat the result as zero, per spec.md §6.4.
func (h *HTTPPerformanceService) Calculate(ctx context.Context, beatmapID int32, mode uint8, mods uint32, maxCombo int32, accuracy float64, missCount int32, passedObjects int32) (PerformanceResult, error) {
	if h.BaseURL == "" {
		return PerformanceResult{}, nil
	}

	body, err := json.Marshal(ppRequest{
		BeatmapID:     beatmapID,
		Mode:          mode,
		Mods:          mods,
		MaxCombo:      maxCombo,
		Accuracy:      accuracy,
		MissCount:     missCount,
		PassedObjects: passedObjects,
	})
	if err != nil {
		return PerformanceResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/calculate", bytes.NewReader(body))
	if err != nil {
		return PerformanceResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return PerformanceResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return PerformanceResult{}, fmt.Errorf("pp service: unexpected status %d", resp.StatusCode)
	}

	var out ppResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PerformanceResult{}, fmt.Errorf("pp service: decode: %w", err)
	}
	return PerformanceResult{
		PP:       out.PP,
		Stars:    out.Stars,
		AR:       out.AR,
		OD:       out.OD,
		MaxCombo: out.MaxCombo,
	}, nil
}

// AsCalculator adapts a PerformanceService to multiplayer's narrower
// PerformanceCalculator interface, using a fixed per-call timeout since
// score relay is not itself context-aware.
type AsCalculator struct {
	Svc     PerformanceService
	Timeout time.Duration
}

// NewCalculator wraps svc for use as a multiplayer.PerformanceCalculator.
func NewCalculator(svc PerformanceService) *AsCalculator {
	return &AsCalculator{Svc: svc, Timeout: 2 * time.Second}
}

func (c *AsCalculator) Calculate(beatmapID int32, mode uint8, mods uint32, maxCombo int32, accuracy float64, missCount int32, passedObjects int32) (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	res, err := c.Svc.Calculate(ctx, beatmapID, mode, mods, maxCombo, accuracy, missCount, passedObjects)
	if err != nil {
		return 0, err
	}
	return res.PP, nil
}
