// Package vin decodes vehicle identification numbers into vehicle records.
//
// Lookups consult the static data set first and fall back to the NHTSA vPIC
// DecodeVin API. Transient API failures are retried with exponential backoff.
package vin

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/sethvargo/go-retry"
)

//go:embed static_vin_data.json
var builtinStaticData []byte

// DefaultBaseURL is the NHTSA vPIC API root.
const DefaultBaseURL = "https://vpic.nhtsa.dot.gov/api/vehicles"

// Compile-time check that Decoder implements checkmate.VehicleDecoder.
var _ checkmate.VehicleDecoder = (*Decoder)(nil)

// Vehicle is the decoded record stored on an inspection.
type Vehicle struct {
	VIN                string `json:"vin"`
	Year               string `json:"year,omitempty"`
	Make               string `json:"make,omitempty"`
	Model              string `json:"model,omitempty"`
	Trim               string `json:"trim,omitempty"`
	EngineDisplacement string `json:"engineDisplacement,omitempty"`
	TransmissionType   string `json:"transmissionType,omitempty"`
	BodyStyle          string `json:"bodyStyle,omitempty"`
	FuelType           string `json:"fuelType,omitempty"`
	Drivetrain         string `json:"drivetrain,omitempty"`
	CountryOfOrigin    string `json:"countryOfOrigin,omitempty"`
	PlantCode          string `json:"plantCode,omitempty"`
	Series             string `json:"series,omitempty"`
}

// Config holds decoder settings. Zero values select defaults.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration

	// StaticDataPath optionally replaces the built-in static data set.
	StaticDataPath string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Decoder implements checkmate.VehicleDecoder.
type Decoder struct {
	baseURL    string
	maxRetries uint64
	backoff    time.Duration
	client     *http.Client
	static     map[string]response
	logger     *slog.Logger
}

// response is the vPIC DecodeVin payload; static data uses the same shape.
type response struct {
	Results []variable `json:"Results"`
}

type variable struct {
	Variable string `json:"Variable"`
	Value    string `json:"Value"`
}

// New creates a Decoder.
func New(cfg Config) (*Decoder, error) {
	d := &Decoder{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		client:     cfg.HTTPClient,
		logger:     cfg.Logger,
	}
	if d.baseURL == "" {
		d.baseURL = DefaultBaseURL
	}
	if d.backoff <= 0 {
		d.backoff = 200 * time.Millisecond
	}
	if d.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		d.client = &http.Client{Timeout: timeout}
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}

	data := builtinStaticData
	if cfg.StaticDataPath != "" {
		b, err := os.ReadFile(cfg.StaticDataPath)
		if err != nil {
			return nil, fmt.Errorf("read static VIN data: %w", err)
		}
		data = b
	}
	if err := json.Unmarshal(data, &d.static); err != nil {
		return nil, fmt.Errorf("parse static VIN data: %w", err)
	}
	return d, nil
}

// Decode returns the vehicle record for a VIN as JSON.
func (d *Decoder) Decode(ctx context.Context, vin string) (json.RawMessage, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !Valid(vin) {
		return nil, checkmate.NotFound("VIN %q is not a valid 17-character VIN", vin)
	}

	resp, ok := d.static[vin]
	if ok {
		d.logger.Debug("VIN found in static data", slog.String("vin", vin))
	} else {
		var err error
		resp, err = d.fetch(ctx, vin)
		if err != nil {
			return nil, err
		}
	}

	v := parse(vin, resp)
	if v.Make == "" && v.Model == "" && v.Year == "" {
		return nil, checkmate.NotFound("VIN %s could not be decoded", vin)
	}
	return json.Marshal(v)
}

// fetch calls vPIC, retrying network errors and 5xx responses.
func (d *Decoder) fetch(ctx context.Context, vin string) (response, error) {
	endpoint := fmt.Sprintf("%s/DecodeVin/%s?format=json", d.baseURL, url.PathEscape(vin))

	var out response
	backoff := retry.WithMaxRetries(d.maxRetries, retry.NewExponential(d.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		res, err := d.client.Do(req)
		if err != nil {
			d.logger.Warn("vPIC request failed", slog.String("vin", vin), slog.String("error", err.Error()))
			return retry.RetryableError(err)
		}
		defer res.Body.Close()

		if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, res.Body)
			d.logger.Warn("vPIC returned retryable status", slog.String("vin", vin), slog.Int("status", res.StatusCode))
			return retry.RetryableError(fmt.Errorf("vPIC status %d", res.StatusCode))
		}
		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("vPIC status %d", res.StatusCode)
		}

		if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode vPIC response: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return response{}, checkmate.LookupFailed("VIN lookup cancelled", err)
		}
		return response{}, checkmate.LookupFailed("VIN lookup failed", err)
	}
	return out, nil
}

var fields = map[string]func(*Vehicle, string){
	"Model Year":          func(v *Vehicle, s string) { v.Year = s },
	"Make":                func(v *Vehicle, s string) { v.Make = s },
	"Model":               func(v *Vehicle, s string) { v.Model = s },
	"Trim":                func(v *Vehicle, s string) { v.Trim = s },
	"Displacement (L)":    func(v *Vehicle, s string) { v.EngineDisplacement = s },
	"Transmission Style":  func(v *Vehicle, s string) { v.TransmissionType = s },
	"Body Style":          func(v *Vehicle, s string) { v.BodyStyle = s },
	"Body Class":          func(v *Vehicle, s string) { v.BodyStyle = s },
	"Fuel Type - Primary": func(v *Vehicle, s string) { v.FuelType = s },
	"Drive Type":          func(v *Vehicle, s string) { v.Drivetrain = s },
	"Plant Country":       func(v *Vehicle, s string) { v.CountryOfOrigin = s },
	"Plant Code":          func(v *Vehicle, s string) { v.PlantCode = s },
	"Series":              func(v *Vehicle, s string) { v.Series = s },
}

// parse maps vPIC variables onto a Vehicle. Empty and "0" values mean
// unknown in vPIC and are skipped.
func parse(vin string, resp response) Vehicle {
	v := Vehicle{VIN: vin}
	for _, r := range resp.Results {
		value := strings.TrimSpace(r.Value)
		if value == "" || value == "0" {
			continue
		}
		if set, ok := fields[r.Variable]; ok {
			set(&v, value)
		}
	}

	t := strings.ToLower(v.TransmissionType)
	switch {
	case strings.Contains(t, "auto"):
		v.TransmissionType = "Automatic"
	case strings.Contains(t, "man"):
		v.TransmissionType = "Manual"
	}
	return v
}

// Valid reports whether s looks like a modern 17-character VIN.
// The letters I, O and Q never appear in a VIN.
func Valid(s string) bool {
	if len(s) != 17 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z' && c != 'I' && c != 'O' && c != 'Q':
		default:
			return false
		}
	}
	return true
}
