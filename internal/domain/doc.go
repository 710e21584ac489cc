// Package domain models satellite fire detections and the daily playback
// timeline built over them.
//
// # Data Source
//
// Detections come from the backend's NASA FIRMS cache as GeoJSON Point
// features. Each feature's properties carry a uid, the sensor and satellite,
// fire radiative power (frp, MW), a confidence label and ts_utc, an
// ISO-8601 acquisition time. Coordinates are [lon, lat].
//
// Confidence:
//
//	VIIRS reports "l", "n" or "h" (low, nominal, high), ordered l < n < h.
//	MODIS reports a 0-100 percentage, folded into the same labels:
//	  <30 low | <80 nominal | >=80 high
//
// Timestamps:
//
//	RFC 3339 with an offset, or naive ISO-8601 which is read as UTC.
//	Detections whose ts_utc fails to parse are kept in the [EventStore] but
//	never binned. This is a silent skip, not an error.
//
// # Timeline
//
// [Bin] groups detections by UTC calendar day ("YYYY-MM-DD"). Only days with
// at least one detection produce a [DailyFrame]; there is no gap filling.
// Each frame ends at 23:59:59 UTC of its day.
//
// [Cursor] walks the frames. Live loads land on the newest day, history
// loads on the oldest. In cumulative mode the visible subset is every
// detection up to the selected frame's end, recomputed from the store.
//
// Ages (age_minutes) are measured against the wall clock at render time,
// not the frame end, so they keep growing while a past day is selected.
//
// # Wind
//
// Only the current day has a real wind observation. Other days get a
// deterministic estimate derived from the live sample (or 15 km/h from
// 220° when none exists):
//
//	direction = round((base + 40·sin(0.5·daysAgo) + 360) mod 360)
//	speed     = max(5, round1(base + 8·cos(0.3·daysAgo)))
//
// Estimates are labelled "historical-estimate" with IsReal=false. They are a
// visual aid, not a forecast. Every sample is memoized per day for the
// process lifetime; see [WindEstimator].
package domain
