package httpserver

import (
	geojson "github.com/paulmach/go.geojson"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// VisualsGeoJSON renders the visual entities as a FeatureCollection.
// Arcs become LineStrings from source to destination; rings and points
// become Points. Every feature carries a "kind" property. Coordinates are
// [lng, lat] as GeoJSON requires.
func VisualsGeoJSON(v model.Visuals) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for _, a := range v.Arcs {
		f := geojson.NewLineStringFeature([][]float64{
			{a.StartLng, a.StartLat},
			{a.EndLng, a.EndLat},
		})
		f.ID = a.ID
		f.SetProperty("kind", "arc")
		f.SetProperty("colors", []string{a.Colors[0], a.Colors[1]})
		f.SetProperty("stroke", a.Stroke)
		f.SetProperty("dash_length", a.DashLength)
		f.SetProperty("dash_gap", a.DashGap)
		f.SetProperty("animate_time_ms", a.AnimateTime)
		f.SetProperty("is_threat", a.IsThreat)
		f.SetProperty("created_at", a.CreatedAt)
		fc.AddFeature(f)
	}

	for _, r := range v.Rings {
		f := geojson.NewPointFeature([]float64{r.Lng, r.Lat})
		f.ID = r.ID
		f.SetProperty("kind", "ring")
		f.SetProperty("color", r.Color)
		f.SetProperty("max_radius", r.MaxRadius)
		f.SetProperty("propagation_speed", r.PropagationSpeed)
		f.SetProperty("repeat_period_ms", r.RepeatPeriod)
		f.SetProperty("created_at", r.CreatedAt)
		fc.AddFeature(f)
	}

	for _, p := range v.Points {
		f := geojson.NewPointFeature([]float64{p.Lng, p.Lat})
		f.SetProperty("kind", "point")
		if p.City != "" {
			f.SetProperty("city", p.City)
		}
		f.SetProperty("size", p.Size)
		f.SetProperty("color", p.Color)
		f.SetProperty("is_threat", p.IsThreat)
		fc.AddFeature(f)
	}

	return fc.MarshalJSON()
}
