package server

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/famfin/internal/clientdata"
	"github.com/aristath/famfin/internal/database"
	"github.com/aristath/famfin/internal/reliability"
	"github.com/aristath/famfin/internal/scheduler"
	"github.com/aristath/famfin/internal/server/response"
)

// DatabaseStatter is the view of a database used by the status endpoints
type DatabaseStatter interface {
	GetStats() (*database.Stats, error)
}

// SystemDeps groups what the system endpoints report on. Any field may be nil.
type SystemDeps struct {
	Monitor   *reliability.Monitor
	Registry  *clientdata.Registry
	Scheduler *scheduler.Scheduler
	Databases map[string]DatabaseStatter
	Jobs      map[string]scheduler.Job
	DataDir   string
}

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	deps        SystemDeps
	startupTime time.Time
	log         zerolog.Logger

	// sampled host usage; replaced in tests
	systemStats func() (cpuPercent, memPercent float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	h := &SystemHandlers{
		deps:        deps,
		startupTime: time.Now(),
		log:         log.With().Str("handler", "system").Logger(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// RegisterRoutes mounts the system endpoints under /system
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/reliability", h.HandleReliability)
		r.Get("/databases", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)

		r.Get("/cache", h.HandleCacheStats)
		r.Delete("/cache", h.HandleClearCache)

		r.Get("/jobs", h.HandleJobsStatus)
		r.Post("/jobs/{name}", h.HandleTriggerJob)
	})
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        reliability.HealthStatus  `json:"status"`
	Uptime        string                    `json:"uptime"`
	CPUPercent    float64                   `json:"cpu_percent"`
	MemoryPercent float64                   `json:"memory_percent"`
	Upstream      *reliability.SystemHealth `json:"upstream,omitempty"`
	Jobs          []scheduler.JobStatus     `json:"jobs,omitempty"`
	CacheEntries  int                       `json:"cache_entries"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
	Error     string  `json:"error,omitempty"`
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	BackupsMB float64 `json:"backups_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleSystemStatus returns overall health
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	status := SystemStatusResponse{
		Status:        reliability.HealthHealthy,
		Uptime:        time.Since(h.startupTime).Round(time.Second).String(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
	}

	if h.deps.Monitor != nil {
		health := h.deps.Monitor.SystemHealth()
		status.Upstream = &health
		status.Status = health.Status
	}
	if h.deps.Scheduler != nil {
		status.Jobs = h.deps.Scheduler.Status()
	}
	if h.deps.Registry != nil {
		for _, c := range h.deps.Registry.Stats() {
			status.CacheEntries += c.Size
		}
	}

	response.Data(w, h.log, http.StatusOK, status)
}

// HandleReliability returns per-endpoint call statistics
// GET /api/system/reliability
func (h *SystemHandlers) HandleReliability(w http.ResponseWriter, r *http.Request) {
	if h.deps.Monitor == nil {
		response.Data(w, h.log, http.StatusOK, []reliability.EndpointStats{})
		return
	}
	response.Data(w, h.log, http.StatusOK, h.deps.Monitor.AllStats())
}

// HandleDatabaseStats returns database statistics
// GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.deps.Databases))
	for name := range h.deps.Databases {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := DatabaseStatsResponse{
		Databases:   make([]DBInfo, 0, len(names)),
		LastChecked: time.Now().Format(time.RFC3339),
	}

	for _, name := range names {
		info := DBInfo{Name: name}
		stats, err := h.deps.Databases[name].GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			info.Error = err.Error()
		} else {
			info.SizeMB = toMB(stats.SizeBytes)
			info.WALSizeMB = toMB(stats.WALSizeBytes)
			info.PageCount = stats.PageCount
			resp.TotalSizeMB += info.SizeMB + info.WALSizeMB
		}
		resp.Databases = append(resp.Databases, info)
	}

	response.Data(w, h.log, http.StatusOK, resp)
}

// HandleDiskUsage returns disk usage statistics
// GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataDirSize := h.getDirSize(h.deps.DataDir)
	backupsSize := h.getDirSize(filepath.Join(h.deps.DataDir, "backups"))

	response.Data(w, h.log, http.StatusOK, DiskUsageResponse{
		DataDirMB: dataDirSize,
		BackupsMB: backupsSize,
		TotalMB:   dataDirSize,
	})
}

// HandleCacheStats lists the in-memory caches
// GET /api/system/cache
func (h *SystemHandlers) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Registry == nil {
		response.Data(w, h.log, http.StatusOK, []clientdata.CacheStats{})
		return
	}
	response.Data(w, h.log, http.StatusOK, h.deps.Registry.Stats())
}

// HandleClearCache clears cache keys matching ?pattern=, or every cache when
// no pattern is given
// DELETE /api/system/cache
func (h *SystemHandlers) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	if h.deps.Registry == nil {
		response.Error(w, h.log, http.StatusServiceUnavailable, "cache registry not available")
		return
	}

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		h.deps.Registry.ClearAll()
		h.log.Info().Msg("All caches cleared")
		response.Data(w, h.log, http.StatusOK, map[string]interface{}{"cleared": "all"})
		return
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		response.Error(w, h.log, http.StatusBadRequest, "invalid pattern: "+err.Error())
		return
	}

	removed := h.deps.Registry.ClearByPattern(re)
	h.log.Info().Str("pattern", pattern).Int("removed", removed).Msg("Cache entries cleared")
	response.Data(w, h.log, http.StatusOK, map[string]interface{}{"cleared": removed})
}

// HandleJobsStatus returns scheduler job status
// GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scheduler == nil {
		response.Data(w, h.log, http.StatusOK, []scheduler.JobStatus{})
		return
	}
	response.Data(w, h.log, http.StatusOK, h.deps.Scheduler.Status())
}

// HandleTriggerJob runs a registered job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.deps.Jobs[name]
	if !ok {
		response.Error(w, h.log, http.StatusNotFound, "unknown job: "+name)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	var err error
	if h.deps.Scheduler != nil {
		err = h.deps.Scheduler.RunNow(job)
	} else {
		err = job.Run()
	}
	if err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		response.Error(w, h.log, http.StatusInternalServerError, err.Error())
		return
	}

	response.Data(w, h.log, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Job " + name + " completed",
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return toMB(totalSize)
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func toMB(bytes int64) float64 {
	return float64(bytes) / 1024 / 1024
}
