package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/escribajus/hearing-transcription/internal/types"
)

// DriveClient shares exported transcripts through Google Drive
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveClient creates a Drive client from OAuth credentials on disk
func NewDriveClient(credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	client, err := tokenClient(config, tokenFile)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
	}
	if err := dc.ensureFolder(); err != nil {
		return nil, err
	}
	return dc, nil
}

// tokenClient builds an HTTP client from a cached OAuth token. A server has
// no interactive consent flow; a missing token is a setup error.
func tokenClient(config *oauth2.Config, tokenFile string) (*http.Client, error) {
	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("drive token file not found (run the authorization tool first): %v", err)
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("unable to parse drive token: %v", err)
	}
	return config.Client(context.Background(), tok), nil
}

// ensureFolder finds or creates the root sharing folder
func (dc *DriveClient) ensureFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		dc.folderName)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %v", err)
	}
	if len(r.Files) > 0 {
		dc.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     dc.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %v", err)
	}
	dc.folderID = file.Id
	return nil
}

// ShareTranscript uploads the rendered transcript document and makes it
// readable by anyone with the link. Returns the shareable URL.
func (dc *DriveClient) ShareTranscript(job *types.Job, content, mimeType, extension string) (string, error) {
	name := fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"), sanitizeFilename(job.Title), extension)

	file := &drive.File{
		Name:     name,
		Parents:  []string{dc.folderID},
		MimeType: mimeType,
	}
	created, err := dc.service.Files.Create(file).
		Media(strings.NewReader(content)).
		Fields("id", "webViewLink").Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload transcript: %v", err)
	}

	permission := &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}
	if _, err := dc.service.Permissions.Create(created.Id, permission).Do(); err != nil {
		return "", fmt.Errorf("failed to set sharing permission: %v", err)
	}

	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// sanitizeFilename removes path separators and bounds the length
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_",
	)
	result := replacer.Replace(name)
	if result == "" {
		result = "transcricao"
	}
	if len(result) > 100 {
		result = result[:100]
	}
	return result
}
