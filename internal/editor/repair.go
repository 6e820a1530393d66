package editor

import "strings"

// JSON修复策略链。模型偶尔返回被截断或含非法字符的JSON，
// 这里按顺序做尽力而为的修复，每一步之后由解析方重试。
// 策略都是启发式的字符串边界猜测，只增不减：修不好就原样返回

type repairStrategy struct {
	name  string
	apply func(string) (string, bool)
}

// repairStrategies 按顺序累积应用
var repairStrategies = []repairStrategy{
	{"close_truncated", repairTruncatedJSON},
	{"escape_characters", repairEscapes},
}

// StripCodeFence 去掉模型违反指令包上的markdown代码围栏
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			trimmed = trimmed[idx+1:]
		} else {
			trimmed = strings.TrimPrefix(trimmed, "```json")
			trimmed = strings.TrimPrefix(trimmed, "```")
		}
	}
	if strings.HasSuffix(strings.TrimSpace(trimmed), "```") {
		trimmed = strings.TrimSpace(trimmed)
		trimmed = strings.TrimSuffix(trimmed, "```")
	}

	return strings.TrimSpace(trimmed)
}

// repairTruncatedJSON 处理响应在字段中途被切断的情况：
// 回退到最后一个完整的引号字段处截断，再按当时的嵌套栈补上闭合符。
// 只在文本没有以}结尾时动手
func repairTruncatedJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "}") {
		return text, false
	}

	inString := false
	escaped := false
	var stack []byte      // 当前打开的 { 与 [
	cutIdx := -1          // 最后一个完整字符串值结束后的位置
	var cutStack []byte   // 该位置时的嵌套栈快照

	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]

		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
				// 只有值字符串是安全截断点；键后面断开会留下没有值的键
				if !isKeyString(trimmed, i) {
					cutIdx = i + 1
					cutStack = append([]byte(nil), stack...)
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			// 完整闭合的容器也是安全的截断点
			cutIdx = i + 1
			cutStack = append([]byte(nil), stack...)
		}
	}

	if cutIdx <= 0 {
		return text, false
	}

	var sb strings.Builder
	sb.WriteString(trimmed[:cutIdx])
	for i := len(cutStack) - 1; i >= 0; i-- {
		if cutStack[i] == '{' {
			sb.WriteByte('}')
		} else {
			sb.WriteByte(']')
		}
	}

	return sb.String(), true
}

// isKeyString 判断在位置i闭合的字符串是否是对象的键（后面跟冒号）
func isKeyString(text string, i int) bool {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}

// repairEscapes 修复字符串值内部的非法字符：
// 未转义的引号、孤立反斜杠、字面换行/制表符/回车
func repairEscapes(text string) (string, bool) {
	var sb strings.Builder
	sb.Grow(len(text))

	inString := false
	changed := false

	for i := 0; i < len(text); i++ {
		c := text[i]

		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}

		switch c {
		case '\\':
			if i+1 < len(text) && isValidEscapeChar(text[i+1]) {
				sb.WriteByte(c)
				sb.WriteByte(text[i+1])
				i++
			} else {
				// 孤立反斜杠，补成双反斜杠
				sb.WriteString(`\\`)
				changed = true
			}
		case '"':
			if isClosingQuote(text, i) {
				inString = false
				sb.WriteByte(c)
			} else {
				// 字符串内部的裸引号
				sb.WriteString(`\"`)
				changed = true
			}
		case '\n':
			sb.WriteString(`\n`)
			changed = true
		case '\t':
			sb.WriteString(`\t`)
			changed = true
		case '\r':
			sb.WriteString(`\r`)
			changed = true
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), changed
}

func isValidEscapeChar(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}

// isClosingQuote 判断位置i的引号是否为JSON字符串的闭合引号：
// 后面跳过空白后应当是 , : } ] 之一或文本结束
func isClosingQuote(text string, i int) bool {
	for j := i + 1; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', ':', '}', ']':
			return true
		default:
			return false
		}
	}
	return true
}
