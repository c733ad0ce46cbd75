// Package template loads workflow templates from a YAML file into an
// immutable in-memory registry.
package template

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clinvera/regflow/internal/application/port"
	"github.com/clinvera/regflow/internal/domain/entity"
)

// Registry is a read-only template catalog keyed by template id
type Registry struct {
	templates map[string]*entity.Template
	ordered   []*entity.Template
	logger    *zap.Logger
}

type templateFile struct {
	Templates []*entity.Template `yaml:"templates"`
}

// LoadRegistry reads and validates the template catalog at path
func LoadRegistry(path string, logger *zap.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template file: %w", err)
	}

	r := &Registry{
		templates: make(map[string]*entity.Template, len(file.Templates)),
		logger:    logger,
	}
	for _, tpl := range file.Templates {
		if err := validateTemplate(tpl); err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.ID, err)
		}
		if _, dup := r.templates[tpl.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", tpl.ID)
		}
		r.templates[tpl.ID] = tpl
		r.ordered = append(r.ordered, tpl)
	}

	logger.Info("Template registry loaded",
		zap.String("path", path),
		zap.Int("count", len(r.ordered)))
	return r, nil
}

// Get returns the template with the given id
func (r *Registry) Get(id string) (*entity.Template, error) {
	tpl, ok := r.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", id, entity.ErrNotFound)
	}
	return tpl, nil
}

// List returns the templates in file order
func (r *Registry) List() []*entity.Template {
	out := make([]*entity.Template, len(r.ordered))
	copy(out, r.ordered)
	return out
}

func validateTemplate(tpl *entity.Template) error {
	if tpl.ID == "" {
		return fmt.Errorf("%w: template id is required", entity.ErrValidation)
	}
	if tpl.Name == "" {
		return fmt.Errorf("%w: template name is required", entity.ErrValidation)
	}
	if !tpl.Type.IsValid() {
		return fmt.Errorf("%w: unrecognized workflow type %q", entity.ErrValidation, tpl.Type)
	}
	if len(tpl.Blueprints) == 0 {
		return fmt.Errorf("%w: template needs at least one task blueprint", entity.ErrValidation)
	}
	for i, bp := range tpl.Blueprints {
		if bp.Name == "" {
			return fmt.Errorf("%w: blueprint %d has no name", entity.ErrValidation, i+1)
		}
	}
	return nil
}

// Verify interface compliance
var _ port.TemplateRegistry = (*Registry)(nil)
