package analyzer

import (
	"regexp"
	"strings"
)

// Language is the routing key the Analyzer uses to gate detector stages.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangCSharp     Language = "csharp"
	LangCPP        Language = "cpp"
)

var extensionToLanguage = map[string]Language{
	".js":   LangJavaScript,
	".jsx":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTypeScript,
	".py":   LangPython,
	".java": LangJava,
	".go":   LangGo,
	".rb":   LangRuby,
	".php":  LangPHP,
	".cs":   LangCSharp,
	".c":    LangCPP,
	".cpp":  LangCPP,
	".h":    LangCPP,
}

var (
	javaClassSignature   = regexp.MustCompile(`(?m)^\s*(public|private|protected)?\s*(final\s+)?class\s+\w+`)
	pythonImportOrDef    = regexp.MustCompile(`(?m)^\s*(import\s+\w|from\s+\w+\s+import|def\s+\w+\s*\()`)
)

// DetectLanguage implements §4.5.2's extension-then-sniff-then-default
// routing.
func DetectLanguage(fileName, content string) Language {
	ext := extOf(fileName)

	if lang, ok := extensionToLanguage[ext]; ok {
		return lang
	}

	if javaClassSignature.MatchString(content) {
		return LangJava
	}

	if pythonImportOrDef.MatchString(content) {
		return LangPython
	}

	return LangJavaScript
}

func extOf(fileName string) string {
	idx := strings.LastIndexByte(fileName, '.')
	if idx < 0 {
		return ""
	}

	return strings.ToLower(fileName[idx:])
}

// isJSFamily reports whether pattern-language-gated stages (async,
// semantic, auth, linter) apply, per the §4.5.2 routing table.
func isJSFamily(lang Language) bool {
	return lang == LangJavaScript || lang == LangTypeScript
}
