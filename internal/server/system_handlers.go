package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/portfin/internal/database"
	"github.com/aristath/portfin/internal/scheduler"
)

// SystemStatusResponse represents system status
type SystemStatusResponse struct {
	Status        string   `json:"status"`
	Version       string   `json:"version"`
	UptimeSeconds int64    `json:"uptime_seconds"`
	GoVersion     string   `json:"go_version"`
	Goroutines    int      `json:"goroutines"`
	CPUPercent    float64  `json:"cpu_percent"`
	MemoryPercent float64  `json:"memory_percent"`
	DiskFreeMB    float64  `json:"disk_free_mb,omitempty"`
	DataDirMB     float64  `json:"data_dir_mb"`
	Databases     []string `json:"databases"`
	Jobs          []string `json:"jobs"`
	RunningJobs   []string `json:"running_jobs,omitempty"`
	LastChecked   string   `json:"last_checked"`
}

// DBInfo represents information about a single database
type DBInfo struct {
	Name    string  `json:"name"`
	Path    string  `json:"path"`
	SizeMB  float64 `json:"size_mb"`
	WALMB   float64 `json:"wal_mb"`
	Pages   int64   `json:"pages"`
	Healthy bool    `json:"healthy"`
	Error   string  `json:"error,omitempty"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// SystemHandlers serves status endpoints and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	startedAt time.Time
	// cpuSample is swapped in tests
	cpuSample func() (float64, error)

	mu      sync.Mutex
	jobs    map[string]scheduler.Job
	running map[string]bool
	wg      sync.WaitGroup
}

// NewSystemHandlers creates system handlers. Nil databases are ignored.
func NewSystemHandlers(log zerolog.Logger, dataDir string, dbs []*database.DB) *SystemHandlers {
	var live []*database.DB
	for _, db := range dbs {
		if db != nil {
			live = append(live, db)
		}
	}
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: live,
		startedAt: time.Now(),
		cpuSample: sampleCPU,
		jobs:      make(map[string]scheduler.Job),
		running:   make(map[string]bool),
	}
}

// SetJobs registers jobs that may be triggered by name
func (h *SystemHandlers) SetJobs(jobs ...scheduler.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, job := range jobs {
		if job != nil {
			h.jobs[job.Name()] = job
		}
	}
}

// Wait blocks until every triggered job has returned
func (h *SystemHandlers) Wait() {
	h.wg.Wait()
}

// HandleSystemStatus returns process and host status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, err := h.cpuSample()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	}
	memPercent := 0.0
	if memStat, err := mem.VirtualMemory(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		memPercent = memStat.UsedPercent
	}
	diskFree := 0.0
	if h.dataDir != "" {
		if usage, err := disk.Usage(h.dataDir); err != nil {
			h.log.Warn().Err(err).Msg("Failed to get disk usage")
		} else {
			diskFree = float64(usage.Free) / 1024 / 1024
		}
	}

	h.mu.Lock()
	jobs := sortedKeys(h.jobs)
	running := sortedKeys(h.running)
	h.mu.Unlock()

	names := make([]string, 0, len(h.databases))
	for _, db := range h.databases {
		names = append(names, db.Name())
	}

	writeJSON(w, http.StatusOK, SystemStatusResponse{
		Status:        "ok",
		Version:       version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskFreeMB:    diskFree,
		DataDirMB:     h.getDirSize(h.dataDir),
		Databases:     names,
		Jobs:          jobs,
		RunningJobs:   running,
		LastChecked:   time.Now().Format(time.RFC3339),
	}, h.log)
}

// HandleDatabaseStats returns per-database size and health
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	response := DatabaseStatsResponse{Databases: []DBInfo{}}
	for _, db := range h.databases {
		info := DBInfo{Name: db.Name(), Path: db.Path(), Healthy: true}
		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.Pages = stats.PageCount
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			info.Healthy = false
			info.Error = err.Error()
		}
		response.TotalSizeMB += info.SizeMB + info.WALMB
		response.Databases = append(response.Databases, info)
	}
	response.LastChecked = time.Now().Format(time.RFC3339)

	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleListJobs lists jobs that can be triggered
// GET /api/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	response := map[string]interface{}{
		"jobs":    sortedKeys(h.jobs),
		"running": sortedKeys(h.running),
	}
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, response, h.log)
}

// HandleTriggerJob runs a registered job in the background
// POST /api/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	h.mu.Lock()
	job, ok := h.jobs[name]
	busy := h.running[name]
	if ok && !busy {
		h.running[name] = true
	}
	h.mu.Unlock()

	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("job %s not registered", name),
		}, h.log)
		return
	case busy:
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "error",
			"message": fmt.Sprintf("job %s already running", name),
		}, h.log)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.running, name)
			h.mu.Unlock()
		}()
		if err := job.Run(); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
			return
		}
		h.log.Info().Str("job", name).Msg("Manual job completed")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("job %s triggered", name),
	}, h.log)
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
	return float64(totalSize) / 1024 / 1024
}

// sampleCPU averages CPU usage across all cores over a short interval
func sampleCPU() (float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	percent, err := cpu.PercentWithContext(ctx, 100*time.Millisecond, false)
	if err != nil || len(percent) == 0 {
		return 0, err
	}
	return percent[0], nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
