package session

// Profile 是从用户集合读取的资料文档，结构由上游决定。
type Profile map[string]any

// ID 返回资料中的 "id" 字段；缺失或非字符串时为空。
func (p Profile) ID() string {
	if p == nil {
		return ""
	}
	id, _ := p["id"].(string)
	return id
}

// clone 深复制资料中的 map 与切片，避免与调用方共享引用。
func (p Profile) clone() Profile {
	if len(p) == 0 {
		return Profile{}
	}
	dst := make(Profile, len(p))
	for k, v := range p {
		dst[k] = cloneValue(v)
	}
	return dst
}

// cloneValue 递归复制 JSON/YAML 解码产生的容器类型，其余值按值返回。
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case Profile:
		return val.clone()
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
