package app

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"lexdraft/api/internal/blob"
	"lexdraft/api/internal/export"
	"lexdraft/api/internal/llm"
)

const refineInstruction = "당신은 비법조인의 법적 문서 작성을 도와주는 법률 전문가입니다."

type RefineInput struct {
	DocumentID string `json:"documentId" validate:"required"`
	FieldName  string `json:"fieldName" validate:"required"`
	UserInput  string `json:"userInput" validate:"required"`
}

type GenerateDocumentInput struct {
	TemplateFilename string            `json:"templateFilename" validate:"required"`
	UserInputs       map[string]string `json:"userInputs"`
}

// StoredFile is a template or generated document ready to stream.
type StoredFile struct {
	Filename string
	MimeType string
	Data     []byte
}

func refinePrompt(input RefineInput) string {
	return fmt.Sprintf(`다음 문서 필수 항목을 법리적으로 더 적합한 문맥으로 다듬어 주세요.

문서 ID: %s
필드명: %s
사용자 입력: %s

법률 문서 스타일을 유지하면서 보다 정확하고 전문적인 문맥으로 변환해 주세요.
- 문서 ID, 필드명, 사용자 입력이라는 키워드는 포함하지 않아야합니다.
- 필드명과 사용자 입력의 내용이 포함되어야 합니다.`, input.DocumentID, input.FieldName, input.UserInput)
}

// RefineField rewrites one user-entered document field in legal register.
func (s *Service) RefineField(ctx context.Context, input RefineInput) (string, error) {
	if strings.TrimSpace(input.FieldName) == "" || strings.TrimSpace(input.UserInput) == "" {
		return "", validation("fieldName and userInput are required", nil)
	}
	return s.generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: refineInstruction},
		{Role: llm.RoleUser, Content: refinePrompt(input)},
	}, s.cfg.LLM.RefineMaxTokens)
}

func (s *Service) Template(ctx context.Context, name string) (StoredFile, error) {
	filename, err := templateFilename(name)
	if err != nil {
		return StoredFile{}, err
	}
	data, err := s.loadBlob(ctx, filename)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{Filename: filename, MimeType: export.DOCXMimeType, Data: data}, nil
}

// GenerateDocument fills the template's placeholders and stores the result as generated_<name>.
func (s *Service) GenerateDocument(ctx context.Context, input GenerateDocumentInput) (StoredFile, error) {
	filename, err := templateFilename(input.TemplateFilename)
	if err != nil {
		return StoredFile{}, err
	}
	template, err := s.loadBlob(ctx, filename)
	if err != nil {
		return StoredFile{}, err
	}
	filled, err := export.FillTemplate(template, input.UserInputs)
	if err != nil {
		if errors.Is(err, export.ErrInvalidTemplate) {
			return StoredFile{}, validation("template is not a DOCX document", map[string]any{"templateFilename": filename})
		}
		return StoredFile{}, fmt.Errorf("fill template %s: %w", filename, err)
	}

	output := "generated_" + filename
	if err := s.blobs.Put(ctx, output, filled, export.DOCXMimeType); err != nil {
		zap.S().Errorw("store generated document failed", "filename", output, "error", err)
		return StoredFile{}, persistenceError("store generated document", err)
	}
	return StoredFile{Filename: output, MimeType: export.DOCXMimeType, Data: filled}, nil
}

func (s *Service) loadBlob(ctx context.Context, key string) ([]byte, error) {
	if s.blobs == nil {
		return nil, notFound("Document not found")
	}
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, notFound("Document not found")
		}
		return nil, persistenceError("load document", err)
	}
	return data, nil
}

// templateFilename accepts a bare file name only.
func templateFilename(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return "", validation("invalid template filename", map[string]any{"filename": name})
	}
	return name, nil
}
