package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-radar/internal/adsb"
	"github.com/yegors/co-radar/internal/history"
	"github.com/yegors/co-radar/internal/physics"
	"github.com/yegors/co-radar/internal/trace"
	"github.com/yegors/co-radar/internal/websocket"
	"github.com/yegors/co-radar/pkg/logger"
)

// HistoryConfig points the heatmap and replay endpoints at a chunk store
type HistoryConfig struct {
	Store       history.Store
	BasePath    string
	Concurrency int
	Seed        uint64 // zero seeds from the clock
}

// Handler contains the API handlers
type Handler struct {
	adsbService *adsb.Service
	wsServer    *websocket.Server
	history     HistoryConfig
	traces      *trace.Client
	logger      *logger.Logger
	now         func() time.Time
}

// NewHandler creates a new API handler. wsServer, the history store and
// traces may be nil; their endpoints then answer 503.
func NewHandler(adsbService *adsb.Service, wsServer *websocket.Server, hist HistoryConfig, traces *trace.Client, log *logger.Logger) *Handler {
	if hist.BasePath == "" {
		hist.BasePath = "globe_history/"
	}
	return &Handler{
		adsbService: adsbService,
		wsServer:    wsServer,
		history:     hist,
		traces:      traces,
		logger:      log.Named("api-handler"),
		now:         time.Now,
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	lastFetch, ok := h.adsbService.GetStatus()
	status := "ok"
	if !ok {
		status = "degraded"
	}
	Write(w, r, http.StatusOK, map[string]any{
		"status":         status,
		"last_fetch":     lastFetch,
		"aircraft_count": h.adsbService.Registry().Stats().Total,
		"compressed":     h.adsbService.Compressed(),
	})
}

// GetStats returns registry counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"stats":    h.adsbService.Registry().Stats(),
		"interval": h.adsbService.Interval().Milliseconds(),
	}
	if h.wsServer != nil {
		resp["websocket_clients"] = h.wsServer.ClientCount()
	}
	Write(w, r, http.StatusOK, resp)
}

// GetReceiver returns the decoder description and receiver position
func (h *Handler) GetReceiver(w http.ResponseWriter, r *http.Request) {
	meta, info := h.adsbService.Receiver()
	resp := map[string]any{
		"meta":         meta,
		"refresh_ms":   h.adsbService.Interval().Milliseconds(),
		"compressed":   h.adsbService.Compressed(),
		"has_receiver": info != nil,
	}
	if lat, lon, ok := h.adsbService.Registry().ReceiverPosition(); ok {
		resp["lat"] = lat
		resp["lon"] = lon
	}
	Write(w, r, http.StatusOK, resp)
}

// GetAllAircraft returns the aircraft matching the query filters
func (h *Handler) GetAllAircraft(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, err := parseAircraftFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var bounds *adsb.Bounds
	if raw := r.URL.Query().Get("bbox"); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		bounds = &b
	}

	resp := h.adsbService.HandleBulkRequest(filter, bounds)
	Write(w, r, http.StatusOK, resp)

	h.logger.Debug("Served aircraft list",
		logger.Int("count", resp.Count),
		logger.Duration("duration", time.Since(start)))
}

// AircraftDetail is one aircraft with derived heading data
type AircraftDetail struct {
	Aircraft            *adsb.Entity `json:"aircraft"`
	MagneticVariation   *float64     `json:"magnetic_variation,omitempty"`
	TrueHeadingEstimate *float64     `json:"true_heading_estimate,omitempty"`
}

// GetAircraftByHex returns an aircraft by its hex ID
func (h *Handler) GetAircraftByHex(w http.ResponseWriter, r *http.Request) {
	hex := strings.ToLower(chi.URLParam(r, "hex"))
	e, ok := h.adsbService.Registry().Get(hex)
	if !ok {
		writeError(w, r, http.StatusNotFound, "aircraft not found")
		return
	}

	detail := AircraftDetail{Aircraft: e}
	if e.HasPosition() {
		alt := entityAltitude(e)
		now := h.now()
		v := physics.CalculateMagneticVariation(*e.Lat, *e.Lon, alt, now)
		detail.MagneticVariation = &v
		if e.TrueHeading == nil && e.MagHeading != nil {
			th := physics.MagneticToTrue(*e.MagHeading, *e.Lat, *e.Lon, alt, now)
			detail.TrueHeadingEstimate = &th
		}
	}
	Write(w, r, http.StatusOK, detail)
}

func entityAltitude(e *adsb.Entity) float64 {
	if e.AltGeom != nil {
		return *e.AltGeom
	}
	if e.AltBaro != nil {
		return e.AltBaro.Value()
	}
	return 0
}

// GetAircraftTrack returns the recorded track segments for an aircraft
func (h *Handler) GetAircraftTrack(w http.ResponseWriter, r *http.Request) {
	hex := strings.ToLower(chi.URLParam(r, "hex"))
	segs, ok := h.adsbService.Registry().Track(hex)
	if !ok {
		writeError(w, r, http.StatusNotFound, "aircraft not found")
		return
	}
	Write(w, r, http.StatusOK, map[string]any{"hex": hex, "segments": segs})
}

// ClearAircraftTrack drops the recorded track of an aircraft
func (h *Handler) ClearAircraftTrack(w http.ResponseWriter, r *http.Request) {
	hex := strings.ToLower(chi.URLParam(r, "hex"))
	if !h.adsbService.Registry().ClearTrack(hex) {
		writeError(w, r, http.StatusNotFound, "aircraft not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HeatmapResponse is a heatmap sample with the settings that produced it
type HeatmapResponse struct {
	Settings  history.Settings       `json:"settings"`
	Chunks    int                    `json:"chunks"`
	Loaded    int                    `json:"loaded"`
	Points    []history.HeatmapPoint `json:"points"`
	Truncated bool                   `json:"truncated"`
}

// GetHeatmap samples positions from the chunks covering the requested
// window. Query parameters follow the tar1090 heat* names.
func (h *Handler) GetHeatmap(w http.ResponseWriter, r *http.Request) {
	if h.history.Store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	params := r.URL.Query()
	if !params.Has("heatmap") && !params.Has("realHeat") {
		params.Set("heatmap", "")
	}
	settings := history.DeriveSettings(params, h.now())

	chunks := history.ChunkList(settings.End, settings.Duration, h.history.BasePath)
	bufs := history.FetchChunks(r.Context(), h.history.Store, chunks, h.history.Concurrency)
	parsed := history.ParseChunks(bufs)

	opts := history.DefaultHeatmapOptions()
	opts.Max = settings.Max
	opts.Lines = settings.Lines
	if h.history.Seed != 0 {
		opts.Rand = history.NewRand(h.history.Seed)
	}
	if settings.Filters {
		opts.Filters = true
		opts.Sources = splitList(params.Get("sources"))
		opts.AltitudeMin = optionalFloat(params.Get("alt_min"))
		opts.AltitudeMax = optionalFloat(params.Get("alt_max"))
	}
	result := history.DecodeHeatmap(parsed, opts)

	h.logger.Debug("Served heatmap",
		logger.Int("chunks", len(chunks)),
		logger.Int("loaded", len(parsed)),
		logger.Int("points", len(result.Points)),
		logger.Bool("truncated", result.Truncated))

	Write(w, r, http.StatusOK, HeatmapResponse{
		Settings:  settings,
		Chunks:    len(chunks),
		Loaded:    len(parsed),
		Points:    result.Points,
		Truncated: result.Truncated,
	})
}

// ReplayResponse is one decoded replay slice
type ReplayResponse struct {
	Chunk  history.ChunkInfo    `json:"chunk"`
	Slice  int                  `json:"slice"`
	Slices int                  `json:"slices"`
	Time   time.Time            `json:"time"`
	Next   time.Time            `json:"next"`
	Frame  *history.ReplayFrame `json:"frame"`
}

// GetReplay decodes one slice of the half-hour chunk containing ts.
// Earlier slices are read first so callsigns carry over.
func (h *Handler) GetReplay(w http.ResponseWriter, r *http.Request) {
	if h.history.Store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "history store not configured")
		return
	}

	ts, err := parseTimestamp(r.URL.Query().Get("ts"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	slice := 0
	if raw := r.URL.Query().Get("slice"); raw != "" {
		slice, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid slice")
			return
		}
	}

	info := history.ChunkFor(ts, h.history.BasePath)
	buf, err := h.history.Store.Get(r.Context(), info.Path)
	if errors.Is(err, history.ErrChunkNotFound) {
		writeError(w, r, http.StatusNotFound, "chunk not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load replay chunk", logger.String("path", info.Path), logger.Error(err))
		writeError(w, r, http.StatusBadGateway, "failed to load chunk")
		return
	}
	chunk, err := history.ParseChunk(buf)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	index := history.ClampSliceIndex(slice, len(chunk.Slices))
	cache := history.MetaCache{}
	for i := 0; i < index; i++ {
		if _, err := chunk.DecodeSlice(i, cache); err != nil {
			break
		}
	}
	frame, err := chunk.DecodeSlice(index, cache)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	Write(w, r, http.StatusOK, ReplayResponse{
		Chunk:  info,
		Slice:  index,
		Slices: len(chunk.Slices),
		Time:   history.AdvanceReplayTime(ts, frame.Interval, index),
		Next:   history.NextReplayTimestamp(ts),
		Frame:  frame,
	})
}

// GetTrace returns the merged trace of an aircraft
func (h *Handler) GetTrace(w http.ResponseWriter, r *http.Request) {
	if h.traces == nil {
		writeError(w, r, http.StatusServiceUnavailable, "traces not configured")
		return
	}

	hex := strings.ToLower(chi.URLParam(r, "hex"))
	q := r.URL.Query()

	date := h.now().UTC()
	if raw := q.Get("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
		date = d
	}

	data, err := h.traces.Fetch(r.Context(), hex, date, trace.Options{Mode: q.Get("mode"), Now: h.now})
	if errors.Is(err, trace.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "trace not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch trace", logger.String("hex", hex), logger.Error(err))
		writeError(w, r, http.StatusBadGateway, "failed to fetch trace")
		return
	}

	if start, end := q.Get("start"), q.Get("end"); start != "" || end != "" {
		data = trace.FilterWindow(data, start, end)
	}
	Write(w, r, http.StatusOK, map[string]any{
		"trace": data,
		"path":  trace.Path(data),
	})
}
