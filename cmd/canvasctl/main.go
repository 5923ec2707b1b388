// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// canvasctl is a command-line tool for operational tasks against a running
// canvasd instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/rotoshake/canvasd/pkg/client"
)

var (
	version    = "0.1"
	apiURL     = "http://localhost:1234"
	jsonOutput = false

	apiClient *client.Client
)

func main() {
	if env := os.Getenv("CANVASD_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	var filteredArgs []string
	for _, arg := range os.Args[1:] {
		if arg == "-json" {
			jsonOutput = true
		} else {
			filteredArgs = append(filteredArgs, arg)
		}
	}

	apiClient = client.New(apiURL, client.WithTimeout(5*time.Minute))

	if len(filteredArgs) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := filteredArgs[0]
	args := filteredArgs[1:]

	var err error
	switch cmd {
	case "canvas":
		err = cmdCanvas(args)
	case "upload":
		err = cmdUpload(args)
	case "cleanup":
		err = cmdCleanup(args)
	case "db-size":
		err = cmdDBSize(args)
	case "wipe-database":
		err = cmdWipe(args)
	case "health":
		err = cmdHealth(args)
	case "version", "-v", "--version":
		fmt.Printf("canvasctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`canvasctl - Control a running canvasd instance

Usage:
  canvasctl [-json] <command> [arguments]

Global Flags:
  -json                     Output in JSON format

Environment:
  CANVASD_API                Base URL of canvasd API (default: http://localhost:1234)

Commands:
  canvas list <userId>               List a user's canvases
  canvas get <id>                    Get a canvas by id
  canvas create <name> <ownerId>     Create a canvas
  canvas delete <id>                 Delete a canvas

  upload <file> [options]            Upload a file
    -user <id>                       Bind to a user id
    -canvas <id>                     Bind to a canvas id
    -progress                        Show a progress bar

  cleanup [options]                  Run the unreferenced-file sweep
    -dry-run                         Report without deleting
    -delete-all-thumbnails           Also wipe surviving files' thumbnails
    -force                           Bypass the danger-threshold refusal

  db-size                            Report database and media directory sizes
  wipe-database [-include-files]     Destructive: wipe every table (and optionally files)
  health                             Check server liveness

  version                            Show version
  help                               Show this help`)
}

func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func cmdCanvas(args []string) error {
	ctx := context.Background()
	if len(args) < 1 {
		return fmt.Errorf("usage: canvasctl canvas <list|get|create|delete> ...")
	}
	switch args[0] {
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("usage: canvasctl canvas list <userId>")
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		canvases, err := apiClient.Canvases.List(ctx, userID)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(canvases)
			return nil
		}
		fmt.Printf("%-6s %-30s %s\n", "ID", "NAME", "LAST MODIFIED")
		fmt.Println(strings.Repeat("-", 60))
		for _, c := range canvases {
			fmt.Printf("%-6d %-30s %s\n", c.ID, c.Name, c.LastModified.Format(time.RFC3339))
		}
		return nil
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: canvasctl canvas get <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		c, err := apiClient.Canvases.Get(ctx, id)
		if err != nil {
			return err
		}
		printJSON(c)
		return nil
	case "create":
		if len(args) < 3 {
			return fmt.Errorf("usage: canvasctl canvas create <name> <ownerId>")
		}
		ownerID, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return err
		}
		c, err := apiClient.Canvases.Create(ctx, args[1], "", ownerID)
		if err != nil {
			return err
		}
		printJSON(c)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: canvasctl canvas delete <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}
		if err := apiClient.Canvases.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	default:
		return fmt.Errorf("unknown canvas subcommand: %s", args[0])
	}
}

func cmdUpload(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: canvasctl upload <file> [-user <id>] [-canvas <id>] [-progress]")
	}
	opts := &client.UploadOptions{}
	path := args[0]
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "-user":
			i++
			opts.UserID, _ = strconv.ParseInt(args[i], 10, 64)
		case "-canvas":
			i++
			opts.CanvasID, _ = strconv.ParseInt(args[i], 10, 64)
		case "-progress":
			opts.ShowProgress = true
		}
	}

	result, err := apiClient.Media.Upload(context.Background(), path, opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(result)
		return nil
	}
	fmt.Printf("uploaded: %s (%s)\n", result.URL, humanize.Bytes(uint64(result.Size)))
	if result.Processing {
		fmt.Println("video transcode queued, watch /ws events for progress")
	}
	return nil
}

func cmdCleanup(args []string) error {
	opts := client.CleanupOptions{}
	for _, a := range args {
		switch a {
		case "-dry-run":
			opts.DryRun = true
		case "-delete-all-thumbnails":
			opts.DeleteAllThumbnails = true
		case "-force":
			opts.Force = true
		}
	}
	result, err := apiClient.Database.Cleanup(context.Background(), opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(result)
		return nil
	}
	if result.Refused {
		fmt.Printf("refused: %s\n", result.Reason)
		return nil
	}
	fmt.Printf("candidates=%d deleted=%d freed=%s dryRun=%v\n",
		result.Candidates, result.Deleted, humanize.Bytes(uint64(result.BytesFreed)), result.DryRun)
	return nil
}

func cmdDBSize(args []string) error {
	size, err := apiClient.Database.Size(context.Background())
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(size)
		return nil
	}
	fmt.Printf("database:   %s\n", humanize.Bytes(uint64(size.Database)))
	fmt.Printf("uploads:    %s\n", humanize.Bytes(uint64(size.Uploads)))
	fmt.Printf("thumbnails: %s\n", humanize.Bytes(uint64(size.Thumbnails)))
	fmt.Printf("transcodes: %s\n", humanize.Bytes(uint64(size.Transcodes)))
	return nil
}

func cmdWipe(args []string) error {
	includeFiles := false
	for _, a := range args {
		if a == "-include-files" {
			includeFiles = true
		}
	}
	fmt.Print("This will permanently delete every canvas, user, and operation. Type \"yes\" to continue: ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" {
		fmt.Println("aborted")
		return nil
	}
	if err := apiClient.Database.Wipe(context.Background(), includeFiles); err != nil {
		return err
	}
	fmt.Println("wiped")
	return nil
}

func cmdHealth(args []string) error {
	h, err := apiClient.Canvases.Health(context.Background())
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(h)
		return nil
	}
	fmt.Printf("%s (version %s, features: %s)\n", h.Status, h.Version, strings.Join(h.Features, ", "))
	return nil
}

