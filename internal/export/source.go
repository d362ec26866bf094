package export

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ArrayName is the symbol firmware links against; its length is ArrayName+"_len".
const ArrayName = "g_model"

const bytesPerLine = 12

// SourceArray renders blob as C++ source defining name[] and name_len.
// name must be a valid C identifier.
func SourceArray(blob []byte, name, modelID string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "// tankai rush model %s\n", modelID)
	b.WriteString("#include <cstdint>\n\n")
	fmt.Fprintf(&b, "extern const unsigned char %s[];\n", name)
	fmt.Fprintf(&b, "extern const unsigned int %s_len;\n\n", name)
	fmt.Fprintf(&b, "alignas(16) const unsigned char %s[] = {\n", name)
	for i := 0; i < len(blob); i += bytesPerLine {
		end := min(i+bytesPerLine, len(blob))
		b.WriteString("  ")
		for j, c := range blob[i:end] {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "0x%02x", c)
		}
		b.WriteString(",\n")
	}
	b.WriteString("};\n")
	fmt.Fprintf(&b, "const unsigned int %s_len = %d;\n", name, len(blob))
	return b.Bytes()
}

// DecodeSourceArray recovers the bytes of name[] from source produced by SourceArray
// and checks them against the declared name_len.
func DecodeSourceArray(src []byte, name string) ([]byte, error) {
	body := regexp.MustCompile(regexp.QuoteMeta(name) + `\[\]\s*=\s*\{([^}]*)\}`).FindSubmatch(src)
	if body == nil {
		return nil, fmt.Errorf("array %s not found", name)
	}
	out := make([]byte, 0, len(body[1])/6)
	for _, tok := range strings.Split(string(body[1]), ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseUint(tok, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("array %s: bad byte %q: %w", name, tok, err)
		}
		out = append(out, byte(v))
	}

	m := regexp.MustCompile(regexp.QuoteMeta(name) + `_len\s*=\s*(\d+)\s*;`).FindSubmatch(src)
	if m == nil {
		return nil, errors.New("length constant not found")
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return nil, err
	}
	if n != len(out) {
		return nil, fmt.Errorf("%s_len is %d but array holds %d bytes", name, n, len(out))
	}
	return out, nil
}
