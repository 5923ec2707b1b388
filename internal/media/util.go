// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"encoding/json"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"
)

func nowImpl() int64 {
	return time.Now().UnixMilli()
}

// encodeJSON marshals through a pooled buffer so response bodies don't each
// allocate their own encoder scratch space.
func encodeJSON(w io.Writer, v interface{}) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return
	}
	_, _ = w.Write(buf.B)
}

// probeDuration shells out to ffprobe for a source's duration in seconds,
// used to size the poster-frame seek point and progress percentages.
// Returns 0 on any failure; callers treat that as "duration unknown".
func probeDuration(ffprobePath, path string) float64 {
	cmd := exec.Command(ffprobePath,
		"-v", "error", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0
	}
	return d
}
