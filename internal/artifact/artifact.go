// Package artifact persists the file triple behind one rendered map: the
// uploaded background image, the rewritten config, and the final composed
// image. The three share a generated correlation id in their file names;
// that uniqueness is what lets concurrent workers write without contention.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"path/filepath"
	"strings"

	_ "image/gif"  // background decode support
	_ "image/jpeg" // background decode support

	"github.com/google/uuid"

	"weathermap/internal/file"
	"weathermap/internal/mapconf"
)

// ErrMaterialize marks failures while persisting a submission's files.
var ErrMaterialize = errors.New("materialize map artifacts")

// Artifacts locates the files produced by one Materialize call.
type Artifacts struct {
	CorrelationID string
	ImagePath     string
	ConfigPath    string
}

// Store owns the maps/, configs/ and final_maps/ directories under dataDir.
type Store struct {
	mapsDir    string
	configsDir string
	finalDir   string
}

// NewStore returns a store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		mapsDir:    filepath.Join(dataDir, "maps"),
		configsDir: filepath.Join(dataDir, "configs"),
		finalDir:   filepath.Join(dataDir, "final_maps"),
	}
}

// EnsureDirs creates the storage directories. Idempotent.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.mapsDir, s.configsDir, s.finalDir} {
		if err := file.EnsureDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// Materialize decodes and re-encodes the uploaded background as PNG, writes
// it under maps/, rewrites the config's BACKGROUND directive to point at it,
// and writes the result under configs/. Both files carry a fresh correlation
// id: {mapName}_{id}.png and {mapName}_{id}.conf.
func (s *Store) Materialize(imageBytes []byte, configText, mapName string) (Artifacts, error) {
	if err := s.EnsureDirs(); err != nil {
		return Artifacts{}, fmt.Errorf("%w: %v", ErrMaterialize, err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: decode background image: %v", ErrMaterialize, err)
	}
	var encoded bytes.Buffer
	if err := png.Encode(&encoded, decoded); err != nil {
		return Artifacts{}, fmt.Errorf("%w: encode background png: %v", ErrMaterialize, err)
	}

	correlationID := uuid.NewString()
	imageFilename := fmt.Sprintf("%s_%s.png", mapName, correlationID)
	imagePath := filepath.Join(s.mapsDir, imageFilename)
	if err := file.WriteAtomic(imagePath, encoded.Bytes()); err != nil {
		return Artifacts{}, fmt.Errorf("%w: write background: %v", ErrMaterialize, err)
	}

	// the config lives in configs/ and references the image in the
	// sibling maps/ directory
	rewritten := mapconf.RewriteBackground(configText, "../maps/"+imageFilename)
	configPath := filepath.Join(s.configsDir, fmt.Sprintf("%s_%s.conf", mapName, correlationID))
	if err := file.WriteAtomic(configPath, []byte(rewritten)); err != nil {
		return Artifacts{}, fmt.Errorf("%w: write config: %v", ErrMaterialize, err)
	}

	return Artifacts{
		CorrelationID: correlationID,
		ImagePath:     imagePath,
		ConfigPath:    configPath,
	}, nil
}

// FinalPathFor maps a materialized config path to the output path the
// renderer should produce: final_maps/{mapName}_{id}.png.
func (s *Store) FinalPathFor(configPath string) string {
	name := strings.TrimSuffix(filepath.Base(configPath), ".conf") + ".png"
	return filepath.Join(s.finalDir, name)
}

// FinalPath resolves a stored artifact name inside final_maps/.
func (s *Store) FinalPath(artifactName string) string {
	return filepath.Join(s.finalDir, filepath.Base(artifactName))
}

// Triple returns the background, config and final image paths belonging to
// the artifact name recorded on a successful task.
func (s *Store) Triple(artifactName string) (imagePath, configPath, finalPath string) {
	base := filepath.Base(artifactName)
	stem := strings.TrimSuffix(base, ".png")
	imagePath = filepath.Join(s.mapsDir, stem+".png")
	configPath = filepath.Join(s.configsDir, stem+".conf")
	finalPath = filepath.Join(s.finalDir, base)
	return imagePath, configPath, finalPath
}
