package jobfile

import (
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Verify checks jobs for empty commands, duplicated ids, self references and dependency cycles.
// Dependencies on ids not defined in the file are allowed, the store checks they exist.
func Verify(jobs []JobSpec) error {
	seen := make(map[string]int, len(jobs))
	for i, job := range jobs {
		if strings.TrimSpace(job.Command) == "" {
			return fmt.Errorf("job %d: command is required", i+1)
		}
		if prev, ok := seen[job.ID]; ok {
			return fmt.Errorf("job %d: id %q already used by job %d", i+1, job.ID, prev)
		}
		seen[job.ID] = i + 1
		for _, dep := range job.DependsOn {
			if dep == job.ID {
				return fmt.Errorf("job %d: %q depends on itself", i+1, job.ID)
			}
		}
	}

	if _, err := Order(jobs); err != nil {
		return err
	}
	return nil
}

// Order sorts jobs so every job follows the jobs it depends on, keeping file order otherwise.
// Returns an error naming the jobs involved in a cycle.
func Order(jobs []JobSpec) ([]JobSpec, error) {
	index := make(map[string]int, len(jobs))
	for i, job := range jobs {
		index[job.ID] = i
	}

	pending := make([]int, len(jobs))    // number of unresolved in-file prerequisites
	dependents := make([][]int, len(jobs)) // prerequisite -> dependents
	for i, job := range jobs {
		for _, dep := range uniq(job.DependsOn) {
			j, ok := index[dep]
			if !ok {
				continue // external prerequisite
			}
			pending[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	res := make([]JobSpec, 0, len(jobs))
	done := make([]bool, len(jobs))
	for len(res) < len(jobs) {
		progress := false
		for i := range jobs {
			if done[i] || pending[i] > 0 {
				continue
			}
			done[i] = true
			progress = true
			res = append(res, jobs[i])
			for _, d := range dependents[i] {
				pending[d]--
			}
		}
		if !progress {
			var cycle []string
			for i, job := range jobs {
				if !done[i] {
					cycle = append(cycle, job.ID)
				}
			}
			return nil, fmt.Errorf("dependency cycle between jobs %v", cycle)
		}
	}
	return res, nil
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			res = append(res, id)
		}
	}
	return res
}

// GenerateSchema generates a JSON schema for the YamlConfig struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&YamlConfig{}), nil
}
