package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-events/internal/events"
	"github.com/i474232898/weather-events/internal/store"
	"github.com/i474232898/weather-events/internal/weather"
)

var validate = validator.New()

const forecastTimeout = 15 * time.Second

// WeatherService is the read side of the aggregator.
type WeatherService interface {
	GetLatest(loc weather.Location) (weather.StoredSnapshot, error)
	GetRange(loc weather.Location, from, to time.Time) ([]weather.StoredSnapshot, error)
	GetForecast(ctx context.Context, lat, lon float64, days int) ([]weather.DailyForecast, error)
	LastSource() string
}

// Tracker owns the tracked location and the alerts polled for it.
type Tracker interface {
	Location() weather.Location
	SetLocation(loc weather.Location)
	Alerts() []weather.Alert
}

// EventReader exposes the event engine's read-only views.
type EventReader interface {
	Active() []events.Event
	History() []events.Event
	ActiveModifiers() events.Modifiers
	Stats() events.Stats
	Now() time.Time
}

// Geocoder resolves a city to coordinates.
type Geocoder interface {
	Geocode(city, country string) (weather.Location, error)
}

// Deps are the components the routes serve. Geocoder may be nil.
type Deps struct {
	Weather  WeatherService
	Tracker  Tracker
	Events   EventReader
	Geocoder Geocoder
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		snapshot, err := d.Weather.GetLatest(d.Tracker.Location())
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data for tracked location yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
		}
		return c.JSON(snapshot)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		var req forecastQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := d.Tracker.Location()
		ctx, cancel := context.WithTimeout(c.UserContext(), forecastTimeout)
		defer cancel()

		days, err := d.Weather.GetForecast(ctx, loc.Lat, loc.Lon, req.Days)
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "forecast unavailable")
		}
		return c.JSON(fiber.Map{
			"location": loc,
			"days":     days,
		})
	})

	v1.Get("/weather/alerts", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"location": d.Tracker.Location(),
			"alerts":   d.Tracker.Alerts(),
		})
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := d.Tracker.Location()
		snapshots, err := d.Weather.GetRange(loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/location", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"location": d.Tracker.Location(),
			"source":   d.Weather.LastSource(),
		})
	})

	v1.Put("/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := req.check(); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc, err := req.resolve(d.Geocoder)
		if err != nil {
			return err
		}
		d.Tracker.SetLocation(loc)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"location": loc})
	})

	ev := v1.Group("/events")

	ev.Get("/active", func(c *fiber.Ctx) error {
		return c.JSON(toEventResponses(d.Events.Active(), d.Events.Now()))
	})

	ev.Get("/history", func(c *fiber.Ctx) error {
		return c.JSON(toEventResponses(d.Events.History(), d.Events.Now()))
	})

	ev.Get("/modifiers", func(c *fiber.Ctx) error {
		return c.JSON(d.Events.ActiveModifiers())
	})

	ev.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(d.Events.Stats())
	})
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	Days int `validate:"required,min=1,max=7"`
}

func (f *forecastQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("days")
	if raw == "" {
		return errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("days must be an integer")
	}
	f.Days = days
	return nil
}

// locationRequest is the body of PUT /location: either coordinates or a city.
type locationRequest struct {
	Lat     *float64 `json:"lat" validate:"omitempty,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"omitempty,gte=-180,lte=180"`
	City    string   `json:"city" validate:"max=128"`
	Country string   `json:"country" validate:"max=64"`
}

func (r locationRequest) check() error {
	if (r.Lat == nil) != (r.Lon == nil) {
		return errors.New("lat and lon must be provided together")
	}
	if r.Lat == nil && r.City == "" {
		return errors.New("provide lat/lon or city")
	}
	return nil
}

func (r locationRequest) resolve(geo Geocoder) (weather.Location, error) {
	if r.Lat != nil {
		return weather.Location{Lat: *r.Lat, Lon: *r.Lon, City: r.City, Country: r.Country}, nil
	}
	if geo == nil {
		return weather.Location{}, fiber.NewError(fiber.StatusNotImplemented, "city lookup requires a geocoder key")
	}
	loc, err := geo.Geocode(r.City, r.Country)
	if err != nil {
		return weather.Location{}, fiber.NewError(fiber.StatusUnprocessableEntity, "could not resolve city")
	}
	return loc, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}

type eventResponse struct {
	events.Event
	DurationSeconds  float64 `json:"durationSeconds"`
	RemainingSeconds float64 `json:"remainingSeconds"`
}

func toEventResponses(evs []events.Event, now time.Time) []eventResponse {
	out := make([]eventResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, eventResponse{
			Event:            e,
			DurationSeconds:  e.Duration.Seconds(),
			RemainingSeconds: e.Remaining(now).Seconds(),
		})
	}
	return out
}
