package maps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/logging"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// ErrNoResults is returned when the geocoder knows no place for the input.
var ErrNoResults = errors.New("no results")

const defaultCacheSize = 256

// Place is a geocoding result.
type Place struct {
	Name     string
	Address  string
	Position geo.Position
}

// Label is the short text shown in an input field.
func (p Place) Label() string {
	if p.Address != "" {
		return p.Address
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Position.String()
}

type GeocoderOptions struct {
	Timeout time.Duration
	// Bounds restricts searches; the zero value searches everywhere.
	Bounds geo.Bounds
	// Country is an ISO 3166-1 alpha-2 code list, e.g. "ca".
	Country   string
	Limit     int
	CacheSize int
	Logger    *logrus.Entry
}

// Geocoder resolves addresses to positions and back. Results are cached in
// process; reverse lookups are keyed by coordinates rounded to ~1 m.
type Geocoder struct {
	http    httpJSON
	bounds  geo.Bounds
	country string
	limit   int
	log     *logrus.Entry

	reverse *lru.Cache[string, Place]
	search  *lru.Cache[string, []Place]
}

func NewGeocoder(baseURL string, opts GeocoderOptions) (*Geocoder, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("geocoder")
	}
	reverse, err := lru.New[string, Place](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	search, err := lru.New[string, []Place](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Geocoder{
		http:    newHTTPJSON(baseURL, opts.Timeout),
		bounds:  opts.Bounds,
		country: opts.Country,
		limit:   opts.Limit,
		log:     opts.Logger,
		reverse: reverse,
		search:  search,
	}, nil
}

// nominatimPlace is one entry of a jsonv2 response. Coordinates arrive as
// strings.
type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n nominatimPlace) place() (Place, error) {
	lat, err := strconv.ParseFloat(n.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("bad latitude %q: %w", n.Lat, err)
	}
	lng, err := strconv.ParseFloat(n.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("bad longitude %q: %w", n.Lon, err)
	}
	return Place{
		Name:     n.Name,
		Address:  n.DisplayName,
		Position: geo.Position{Lat: lat, Lng: lng},
	}, nil
}

// Search returns places matching query, best first.
func (g *Geocoder) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrNoResults
	}
	key := strings.ToLower(query)
	if places, ok := g.search.Get(key); ok {
		return places, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("limit", strconv.Itoa(g.limit))
	if g.country != "" {
		q.Set("countrycodes", g.country)
	}
	if g.bounds != (geo.Bounds{}) {
		q.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f", g.bounds.West, g.bounds.North, g.bounds.East, g.bounds.South))
		q.Set("bounded", "1")
	}

	var raw []nominatimPlace
	if err := g.http.get(ctx, "/search", q, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.place()
		if err != nil {
			g.log.WithError(err).Debug("skipping malformed search result")
			continue
		}
		places = append(places, p)
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}
	g.search.Add(key, places)
	return places, nil
}

// Reverse returns the address at p.
func (g *Geocoder) Reverse(ctx context.Context, p geo.Position) (Place, error) {
	key := fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lng)
	if place, ok := g.reverse.Get(key); ok {
		return place, nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', 6, 64))
	q.Set("format", "jsonv2")

	var raw nominatimPlace
	if err := g.http.get(ctx, "/reverse", q, &raw); err != nil {
		return Place{}, err
	}
	if raw.Error != "" || raw.DisplayName == "" {
		return Place{}, ErrNoResults
	}
	place, err := raw.place()
	if err != nil {
		return Place{}, err
	}
	g.reverse.Add(key, place)
	return place, nil
}

// CacheLen reports the number of cached reverse lookups.
func (g *Geocoder) CacheLen() int {
	return g.reverse.Len()
}
