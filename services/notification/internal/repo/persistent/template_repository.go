package persistent

import (
	"context"
	"errors"

	"opsdash/services/notification/internal/entity"
	"opsdash/services/notification/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateRepository interface {
	FindActiveByCode(ctx context.Context, code string) (*entity.Template, error)
	Save(ctx context.Context, template *entity.Template) error
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) FindActiveByCode(ctx context.Context, code string) (*entity.Template, error) {
	var m model.TemplateModel
	err := r.db.WithContext(ctx).Where("code = ? AND active = ?", code, true).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, &entity.StorageError{Op: "find template", Err: err}
	}
	return ToTemplateEntity(&m), nil
}

// Save replaces the active template with the same code, or inserts a new one.
func (r *templateRepository) Save(ctx context.Context, template *entity.Template) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.TemplateModel
		err := tx.Where("code = ? AND active = ?", template.Code, true).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.TemplateModel{
				ID:            uuid.New().String(),
				Code:          template.Code,
				TitleTemplate: template.TitleTemplate,
				BodyTemplate:  template.BodyTemplate,
				DefaultKind:   string(template.DefaultKind),
				DefaultIcon:   template.DefaultIcon,
				Category:      template.Category,
				Active:        template.Active,
			}).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&existing).Updates(map[string]interface{}{
			"title_template": template.TitleTemplate,
			"body_template":  template.BodyTemplate,
			"default_kind":   string(template.DefaultKind),
			"default_icon":   template.DefaultIcon,
			"category":       template.Category,
			"active":         template.Active,
		}).Error
	})
	if err != nil {
		return &entity.StorageError{Op: "save template", Err: err}
	}
	return nil
}
