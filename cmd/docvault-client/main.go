package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/docvault/docvault/cmd/flags"
	"github.com/docvault/docvault/interfaces"
)

var serverAddrFlag = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "address of the docvault API server",
}

var ownerFlag = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "hex identity to act on behalf of",
}

func main() {
	app := &cli.App{
		Name:  "docvault-client",
		Usage: "Upload, fetch and verify documents against a docvault server",
		Flags: append([]cli.Flag{serverAddrFlag, ownerFlag}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "upload a file and print its document record",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file-type", Usage: "declared file type, defaults from the extension"},
					&cli.StringFlag{Name: "backends", Usage: "comma-separated backend scheme preference"},
					&cli.BoolFlag{Name: "redundant", Usage: "write all preferred backends"},
					&cli.BoolFlag{Name: "no-register", Usage: "skip ledger registration"},
				},
				Action: uploadAction,
			},
			{
				Name:      "fetch",
				Usage:     "download document content to a file and verify its hash locally",
				ArgsUsage: "<document-id> <output-path>",
				Action:    fetchAction,
			},
			{
				Name:      "record",
				Usage:     "print the document record",
				ArgsUsage: "<document-id>",
				Action:    recordAction,
			},
			{
				Name:      "archive",
				Usage:     "archive a document",
				ArgsUsage: "<document-id>",
				Action:    archiveAction,
			},
			{
				Name:      "sign",
				Usage:     "append a ledger signature to a document",
				ArgsUsage: "<document-id>",
				Action:    signAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func uploadAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	path := cCtx.Args().First()
	if path == "" {
		return fmt.Errorf("usage: upload <path>")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fileType := cCtx.String("file-type")
	if fileType == "" {
		fileType = typeFromExtension(path)
	}

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.WriteField("file_type", fileType); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	url := cCtx.String(serverAddrFlag.Name) + "/api/documents?"
	if backends := cCtx.String("backends"); backends != "" {
		url += "backends=" + backends + "&"
	}
	if cCtx.Bool("redundant") {
		url += "redundant=true&"
	}
	if cCtx.Bool("no-register") {
		url += "register=false&"
	}

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Docvault-Owner", cCtx.String(ownerFlag.Name))

	logger.Info("Uploading document", "path", path, "size", len(data),
		"expected_id", interfaces.ComputeID(data).String())
	return doJSON(req)
}

func fetchAction(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)
	id := cCtx.Args().Get(0)
	out := cCtx.Args().Get(1)
	if id == "" || out == "" {
		return fmt.Errorf("usage: fetch <document-id> <output-path>")
	}

	expected, err := interfaces.NewContentIDFromHex(id)
	if err != nil {
		return err
	}

	resp, err := http.Get(cCtx.String(serverAddrFlag.Name) + "/api/documents/" + id + "/content")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Trust nothing: rehash locally regardless of the server's header.
	if !interfaces.ComputeID(data).Equal(expected) {
		return fmt.Errorf("content hash mismatch: refusing to write %s", out)
	}

	if err := os.WriteFile(out, data, 0644); err != nil {
		return err
	}
	logger.Info("Document fetched and verified", "path", out, "size", len(data),
		"server_verified", resp.Header.Get("X-Docvault-Verified"))
	return nil
}

func recordAction(cCtx *cli.Context) error {
	id := cCtx.Args().First()
	if id == "" {
		return fmt.Errorf("usage: record <document-id>")
	}
	req, err := http.NewRequest(http.MethodGet, cCtx.String(serverAddrFlag.Name)+"/api/documents/"+id, nil)
	if err != nil {
		return err
	}
	return doJSON(req)
}

func archiveAction(cCtx *cli.Context) error {
	return postAction(cCtx, "/archive")
}

func signAction(cCtx *cli.Context) error {
	return postAction(cCtx, "/signatures")
}

func postAction(cCtx *cli.Context, suffix string) error {
	id := cCtx.Args().First()
	if id == "" {
		return fmt.Errorf("usage: %s <document-id>", cCtx.Command.Name)
	}
	req, err := http.NewRequest(http.MethodPost, cCtx.String(serverAddrFlag.Name)+"/api/documents/"+id+suffix, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Docvault-Owner", cCtx.String(ownerFlag.Name))
	return doJSON(req)
}

// doJSON executes the request and pretty-prints the JSON response.
func doJSON(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func typeFromExtension(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "text/plain"
	}
}
