package localization

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed translations/*.yaml
var translationsFS embed.FS

const DefaultLanguage = "en"

var supported = []string{"en", "ru"}

type Service struct {
	translations map[string]map[string]interface{}
}

func NewService() (*Service, error) {
	s := &Service{
		translations: make(map[string]map[string]interface{}),
	}

	for _, lang := range supported {
		data, err := translationsFS.ReadFile(fmt.Sprintf("translations/%s.yaml", lang))
		if err != nil {
			return nil, fmt.Errorf("read %s translations: %w", lang, err)
		}

		var translations map[string]interface{}
		if err := yaml.Unmarshal(data, &translations); err != nil {
			return nil, fmt.Errorf("parse %s translations: %w", lang, err)
		}

		s.translations[lang] = translations
	}

	return s, nil
}

// Get retrieves a translation by key for the given language.
// Key format: "section.key". Unknown languages fall back to English, unknown
// keys come back as the key itself. Params fill {{name}} placeholders.
func (s *Service) Get(lang, key string, params map[string]interface{}) string {
	langTranslations, ok := s.translations[lang]
	if !ok {
		langTranslations = s.translations[DefaultLanguage]
	}

	var current interface{} = langTranslations
	for _, part := range strings.Split(key, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return key
		}
		current = m[part]
	}

	text, ok := current.(string)
	if !ok {
		return key
	}

	return replacePlaceholders(text, params)
}

// Match picks a supported language from an Accept-Language style value.
func Match(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		base := strings.SplitN(tag, "-", 2)[0]
		for _, lang := range supported {
			if base == lang {
				return lang
			}
		}
	}
	return DefaultLanguage
}

func replacePlaceholders(text string, params map[string]interface{}) string {
	for key, value := range params {
		text = strings.ReplaceAll(text, "{{"+key+"}}", fmt.Sprint(value))
	}
	return text
}
