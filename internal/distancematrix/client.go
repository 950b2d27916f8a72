package distancematrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"relay/config"
	"relay/internal/logger"
	"strings"
	"time"
)

// MaxMatrixElements is the provider's per-request ceiling on
// |origins| × |destinations|. Callers chunk their origin lists to stay under
// it.
const MaxMatrixElements = 100

// Matrix is one distance-matrix response. Origin and destination address
// strings come back normalized by the provider, so they rarely match the
// strings that were sent; rows are indexed [origin][destination].
type Matrix struct {
	OriginAddresses      []string `json:"origin_addresses"`
	DestinationAddresses []string `json:"destination_addresses"`
	Rows                 []Row    `json:"rows"`
}

type Row struct {
	Elements []Element `json:"elements"`
}

type Element struct {
	Distance Value `json:"distance"`
	Duration Value `json:"duration"`
}

// Value carries meters for distances and seconds for durations.
type Value struct {
	Value int `json:"value"`
}

type Client struct {
	apiKey     string
	units      string
	baseURL    string
	httpClient *http.Client
	log        logger.Logger
}

func NewClient(config config.Config) *Client {
	units := config.MapsUnits
	if units == "" {
		units = "imperial"
	}

	return &Client{
		apiKey:  config.MapsAPIKey,
		units:   units,
		baseURL: "https://maps.googleapis.com/maps/api/distancematrix/json",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.New("distanceMatrixClient"),
	}
}

// Lookup fetches the pairwise driving matrix for the given origin and
// destination address lists. The caller owns the element ceiling.
func (c *Client) Lookup(
	ctx context.Context,
	origins, destinations []string,
) (Matrix, error) {
	log := c.log.Function("Lookup")

	params := url.Values{}
	params.Set("origins", strings.Join(origins, "|"))
	params.Set("destinations", strings.Join(destinations, "|"))
	params.Set("units", c.units)
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"?"+params.Encode(),
		nil,
	)
	if err != nil {
		return Matrix{}, log.Err("failed to build matrix request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Matrix{}, log.Err("matrix request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Matrix{}, log.Error("unexpected matrix response status", "status", resp.StatusCode)
	}

	var matrix Matrix
	if err := json.NewDecoder(resp.Body).Decode(&matrix); err != nil {
		return Matrix{}, log.Err("failed to decode matrix response", err)
	}

	return matrix, nil
}
