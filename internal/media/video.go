// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/mitchellh/go-ps"
	"golang.org/x/sys/unix"

	"github.com/rotoshake/canvasd/internal/canvasevents"
	"github.com/rotoshake/canvasd/internal/store"
)

// VideoJob describes one queued transcode.
type VideoJob struct {
	Filename   string // stored upload filename
	SourcePath string // absolute path to the source file
	CanvasID   int64
	DurationS  float64 // probed duration, for progress percentage and poster timing
}

// activeProcess tracks a running encoder subprocess so it can be canceled.
type activeProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// VideoQueue is a single-worker FIFO transcode queue: at most one encoder
// subprocess runs at a time, matching the spec's sequential-queue
// requirement.
type VideoQueue struct {
	db          *store.DB
	storage     *Storage
	bus         canvasevents.EventBus
	ffmpegPath  string
	ffprobePath string
	maxWidth    int
	maxHeight   int

	jobs chan VideoJob

	mu      sync.Mutex
	active  map[string]*activeProcess // filename -> running process
	cancels map[string]bool           // filename -> cancel requested before start
}

// NewVideoQueue builds a VideoQueue and starts its single worker goroutine.
func NewVideoQueue(db *store.DB, storage *Storage, bus canvasevents.EventBus, ffmpegPath, ffprobePath string, maxWidth, maxHeight int) *VideoQueue {
	q := &VideoQueue{
		db:          db,
		storage:     storage,
		bus:         bus,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		maxWidth:    maxWidth,
		maxHeight:   maxHeight,
		jobs:        make(chan VideoJob, 64),
		active:      make(map[string]*activeProcess),
		cancels:     make(map[string]bool),
	}
	go q.worker()
	return q
}

// Enqueue submits a job; Uploads stream to disk and never block on the
// queue, so Enqueue never blocks the HTTP handler beyond the channel send.
func (q *VideoQueue) Enqueue(job VideoJob) {
	q.jobs <- job
}

// Cancel sends SIGINT to a running job's process group. If the job has not
// started yet, the cancellation is recorded and honored at start time.
func (q *VideoQueue) Cancel(filename string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.active[filename]; ok {
		p.cancel()
		if p.cmd.Process != nil {
			pid := p.cmd.Process.Pid
			unix.Kill(-pid, unix.SIGINT)
			if isRunning(pid) {
				unix.Kill(-pid, unix.SIGKILL)
			}
		}
		return true
	}
	q.cancels[filename] = true
	return false
}

func (q *VideoQueue) worker() {
	for job := range q.jobs {
		q.run(job)
	}
}

func (q *VideoQueue) run(job VideoJob) {
	q.mu.Lock()
	if q.cancels[job.Filename] {
		delete(q.cancels, job.Filename)
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.db.UpdateProcessingStatus(ctx, job.Filename, store.ProcessingInProgress, ""); err != nil {
		log.Printf("media: recording processing status failed for %s: %v", job.Filename, err)
	}
	q.publish(job.CanvasID, canvasevents.EventVideoProcessingStart, map[string]interface{}{
		"filename": job.Filename,
	})

	basename := Basename(job.Filename)
	dstRel := q.storage.TranscodePath(basename, "webm")
	dst, err := absPathFor(q.storage, dstRel)
	if err != nil {
		q.fail(job, err)
		return
	}
	if err := q.storage.Fs.MkdirAll(dirOf(dstRel), 0o755); err != nil {
		q.fail(job, err)
		return
	}

	args := []string{
		"-y", "-i", job.SourcePath,
		"-vf", fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", q.maxWidth, q.maxHeight),
		"-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0",
		"-c:a", "libopus", "-b:a", "128k",
		dst,
	}
	cmd := exec.CommandContext(ctx, q.ffmpegPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		q.fail(job, err)
		return
	}
	if err := cmd.Start(); err != nil {
		q.fail(job, err)
		return
	}

	q.mu.Lock()
	q.active[job.Filename] = &activeProcess{cmd: cmd, cancel: cancel}
	q.mu.Unlock()

	go q.readProgress(job, stderr)

	if err := q.generatePoster(ctx, job, basename); err != nil {
		log.Printf("media: poster generation failed for %s: %v", job.Filename, err)
	}

	waitErr := cmd.Wait()

	q.mu.Lock()
	delete(q.active, job.Filename)
	q.mu.Unlock()

	if ctx.Err() == context.Canceled {
		q.publish(job.CanvasID, canvasevents.EventVideoProcessingCanceled, map[string]interface{}{
			"filename": job.Filename,
		})
		return
	}
	if waitErr != nil {
		q.fail(job, waitErr)
		return
	}

	formats, err := json.Marshal(map[string]string{"webm": q.storage.TranscodePath(basename, "webm")})
	if err != nil {
		q.fail(job, err)
		return
	}
	if err := q.db.UpdateProcessedFormats(context.Background(), job.Filename, string(formats)); err != nil {
		log.Printf("media: recording processed formats failed for %s: %v", job.Filename, err)
	}
	if err := q.db.UpdateProcessingStatus(context.Background(), job.Filename, store.ProcessingCompleted, ""); err != nil {
		log.Printf("media: recording processing status failed for %s: %v", job.Filename, err)
	}

	q.publish(job.CanvasID, canvasevents.EventVideoProcessingComplete, map[string]interface{}{
		"filename": job.Filename,
		"format":   "webm",
	})
}

// readProgress drains ffmpeg's stderr line by line, parsing time= markers
// into a completion percentage and publishing progress events. Runs on its
// own goroutine so the caller never blocks on subprocess output.
func (q *VideoQueue) readProgress(job VideoJob, stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		pct, ok := parseFFmpegProgress(line, job.DurationS)
		if !ok {
			continue
		}
		q.publish(job.CanvasID, canvasevents.EventVideoProcessingProgress, map[string]interface{}{
			"filename": job.Filename,
			"percent":  pct,
		})
	}
}

var timeRegexp = regexp.MustCompile(`time=(\d+):(\d+):(\d+\.\d+)`)

func parseFFmpegProgress(line string, totalSeconds float64) (pct float64, ok bool) {
	m := timeRegexp.FindStringSubmatch(line)
	if m == nil || totalSeconds <= 0 {
		return 0, false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	mm, _ := strconv.ParseFloat(m[2], 64)
	s, _ := strconv.ParseFloat(m[3], 64)
	elapsed := h*3600 + mm*60 + s
	pct = elapsed / totalSeconds * 100
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

func (q *VideoQueue) generatePoster(ctx context.Context, job VideoJob, basename string) error {
	if job.DurationS <= 0 {
		return nil
	}
	posterRel := q.storage.ThumbnailPath(0, basename+"-poster")
	posterRel = strings.Replace(posterRel, "/0/", "/poster/", 1)
	poster, err := absPathFor(q.storage, posterRel)
	if err != nil {
		return err
	}
	if err := q.storage.Fs.MkdirAll(dirOf(posterRel), 0o755); err != nil {
		return err
	}
	seekAt := job.DurationS * 0.10
	cmd := exec.CommandContext(ctx, q.ffmpegPath,
		"-y", "-ss", fmt.Sprintf("%.2f", seekAt), "-i", job.SourcePath,
		"-frames:v", "1", "-vf", "scale=320:-1", poster)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("poster frame: %w: %s", err, out)
	}
	return nil
}

func (q *VideoQueue) fail(job VideoJob, err error) {
	log.Printf("media: transcode failed for %s: %v", job.Filename, err)
	if updErr := q.db.UpdateProcessingStatus(context.Background(), job.Filename, store.ProcessingFailed, err.Error()); updErr != nil {
		log.Printf("media: recording processing status failed for %s: %v", job.Filename, updErr)
	}
	q.publish(job.CanvasID, canvasevents.EventVideoProcessingFailed, map[string]interface{}{
		"filename": job.Filename,
		"error":    err.Error(),
	})
}

func (q *VideoQueue) publish(canvasID int64, eventType string, payload map[string]interface{}) {
	if q.bus == nil {
		return
	}
	_ = q.bus.Publish(context.Background(), canvasevents.Event{
		Type:     eventType,
		CanvasID: fmt.Sprintf("%d", canvasID),
		Payload:  payload,
	})
}

// isRunning reports whether a pid is still alive, a liveness check used
// before assuming a canceled subprocess has actually exited.
func isRunning(pid int) bool {
	proc, err := ps.FindProcess(pid)
	return err == nil && proc != nil
}
