// Package sheetstest 提供内存版 Google Sheets values 接口，供同步相关测试使用
package sheetstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// 单元格区域起始行号，如 Licenses!A5:H5 中的 5
var rangeStartRow = regexp.MustCompile(`![A-Z]+(\d+)`)

// Server 模拟单个工作表，rows[0] 对应表格第 2 行（第 1 行为表头）
type Server struct {
	*httptest.Server

	mu   sync.Mutex
	rows [][]interface{}
}

// NewServer 启动模拟服务，测试结束时自动关闭
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// ClientOptions 把 sheets 客户端指向模拟服务并跳过授权
func (s *Server) ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(s.URL + "/"),
		option.WithoutAuthentication(),
	}
}

// Rows 返回当前表格内容的副本
func (s *Server) Rows() [][]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]interface{}, len(s.rows))
	for i, row := range s.rows {
		out[i] = append([]interface{}(nil), row...)
	}
	return out
}

// SetRows 预置表格内容
func (s *Server) SetRows(rows [][]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = rows
}

// Keys 返回 A 列密钥
func (s *Server) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.rows))
	for _, row := range s.rows {
		key := ""
		if len(row) > 0 {
			key, _ = row[0].(string)
		}
		keys = append(keys, key)
	}
	return keys
}

// 路径形如 /v4/spreadsheets/{id}/values/{range}、.../values/{range}:append、.../values:batchUpdate
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, rest, ok = strings.Cut(rest, "/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch {
	case rest == "values:batchUpdate" && r.Method == http.MethodPost:
		var req sheets.BatchUpdateValuesRequest
		if !decode(w, r, &req) {
			return
		}
		for _, vr := range req.Data {
			if !s.write(vr.Range, vr.Values) {
				http.Error(w, "bad range "+vr.Range, http.StatusBadRequest)
				return
			}
		}
		reply(w, map[string]interface{}{"totalUpdatedRows": len(req.Data)})

	case strings.HasPrefix(rest, "values/"):
		rng := strings.TrimPrefix(rest, "values/")
		switch {
		case strings.HasSuffix(rng, ":append") && r.Method == http.MethodPost:
			var vr sheets.ValueRange
			if !decode(w, r, &vr) {
				return
			}
			s.mu.Lock()
			s.rows = append(s.rows, vr.Values...)
			s.mu.Unlock()
			reply(w, map[string]interface{}{})
		case r.Method == http.MethodPut:
			var vr sheets.ValueRange
			if !decode(w, r, &vr) {
				return
			}
			if !s.write(rng, vr.Values) {
				http.Error(w, "bad range "+rng, http.StatusBadRequest)
				return
			}
			reply(w, map[string]interface{}{})
		case r.Method == http.MethodGet:
			reply(w, s.keyColumn(rng))
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		http.NotFound(w, r)
	}
}

// keyColumn 只返回 A 列，与读取密钥列的请求对应
func (s *Server) keyColumn(rng string) map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp := map[string]interface{}{"range": rng, "majorDimension": "ROWS"}
	if len(s.rows) == 0 {
		return resp
	}
	values := make([][]interface{}, len(s.rows))
	for i, row := range s.rows {
		values[i] = []interface{}{}
		if len(row) > 0 {
			values[i] = []interface{}{row[0]}
		}
	}
	resp["values"] = values
	return resp
}

// write 从区域起始行开始逐行覆盖
func (s *Server) write(rng string, values [][]interface{}) bool {
	m := rangeStartRow.FindStringSubmatch(rng)
	if m == nil {
		return false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil || row < 2 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range values {
		idx := row - 2 + i
		for len(s.rows) <= idx {
			s.rows = append(s.rows, []interface{}{})
		}
		s.rows[idx] = v
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func reply(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
