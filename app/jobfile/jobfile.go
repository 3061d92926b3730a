// Package jobfile loads work definitions with dependencies from a yaml file
// and enqueues them into the store in dependency order.
//
// Example:
//
//	jobs:
//	  - id: fetch
//	    command: curl -sO https://example.com/data.csv
//	  - id: load
//	    command: ./load.sh data.csv
//	    depends_on: [fetch]
package jobfile

import (
	"context"
	"os"
	"strings"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/umputun/workdb/app/persistence"
)

// JobSpec defines a single work item, command is stored as the item payload
type JobSpec struct {
	ID        string   `yaml:"id" json:"id,omitempty" jsonschema:"description=work item id or random uuid if empty"`
	Command   string   `yaml:"command" json:"command" jsonschema:"minLength=1,description=shell command stored as the item payload"`
	DependsOn []string `yaml:"depends_on" json:"depends_on,omitempty" jsonschema:"description=ids of jobs which must succeed first"`
}

// YamlConfig is the top level structure of the job file
type YamlConfig struct {
	Jobs []JobSpec `yaml:"jobs" json:"jobs" jsonschema:"description=jobs to enqueue"`
}

// Inserter is the part of the store used to enqueue jobs
type Inserter interface {
	Insert(ctx context.Context, item persistence.WorkItem, prerequisites ...string) (persistence.WorkItem, error)
}

// Parser reads job file
type Parser struct {
	file string
}

// New makes Parser for file, not parsing yet
func New(file string) *Parser {
	return &Parser{file: file}
}

func (p Parser) String() string {
	return p.file
}

// List parses the file and returns verified jobs in dependency order.
// Jobs without id get a random one.
func (p Parser) List() ([]JobSpec, error) {
	data, err := os.ReadFile(p.file)
	if err != nil {
		return nil, errors.Wrapf(err, "can't load job file %s", p.file)
	}
	return Parse(data)
}

// Parse decodes yaml job definitions, verifies them and returns jobs in dependency order
func Parse(data []byte) ([]JobSpec, error) {
	var cfg YamlConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "can't parse job file")
	}
	for i := range cfg.Jobs {
		cfg.Jobs[i].ID = strings.TrimSpace(cfg.Jobs[i].ID)
		if cfg.Jobs[i].ID == "" {
			cfg.Jobs[i].ID = uuid.NewString()
		}
	}
	if err := Verify(cfg.Jobs); err != nil {
		return nil, err
	}
	return Order(cfg.Jobs)
}

// Enqueue inserts jobs in the given order. Jobs already stored are skipped,
// so loading the same file after restart is safe. Returns number of inserted jobs.
func Enqueue(ctx context.Context, store Inserter, jobs []JobSpec) (int, error) {
	added := 0
	for _, job := range jobs {
		item := persistence.WorkItem{ID: job.ID, Payload: []byte(job.Command)}
		_, err := store.Insert(ctx, item, job.DependsOn...)
		if errors.Is(err, persistence.ErrDuplicateID) {
			log.Printf("[DEBUG] job %s already stored, skipped", job.ID)
			continue
		}
		if err != nil {
			return added, errors.Wrapf(err, "can't enqueue job %s", job.ID)
		}
		log.Printf("[INFO] job %s enqueued, depends on %v", job.ID, job.DependsOn)
		added++
	}
	return added, nil
}
