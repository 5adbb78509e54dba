// internal/storage/file_storage_test.go
package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStorage(t *testing.T) (*FileStorage, string) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "storage_test_*")
	if err != nil {
		t.Fatalf("创建临时测试目录失败: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	fs, err := NewFileStorage(tempDir)
	if err != nil {
		t.Fatalf("创建文件存储失败: %v", err)
	}
	return fs, tempDir
}

func TestSaveLoadJSON(t *testing.T) {
	fs, _ := newTestStorage(t)

	type doc struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	if err := fs.SaveJSON("doc.json", doc{Name: "test", Count: 3}); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	var loaded doc
	if err := fs.LoadJSON("doc.json", &loaded); err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if loaded.Name != "test" || loaded.Count != 3 {
		t.Errorf("读取结果错误: %+v", loaded)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	fs, tempDir := newTestStorage(t)

	if err := fs.SaveRaw("entry.json", []byte(`{}`)); err != nil {
		t.Fatalf("保存失败: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "entry.json.tmp")); !os.IsNotExist(err) {
		t.Error("成功写入后不应残留临时文件")
	}
}

func TestExistsAndDelete(t *testing.T) {
	fs, _ := newTestStorage(t)

	if fs.Exists("missing.json") {
		t.Error("不存在的条目 Exists 应为 false")
	}

	fs.SaveRaw("a.json", []byte("{}"))
	if !fs.Exists("a.json") {
		t.Error("已保存的条目 Exists 应为 true")
	}

	if err := fs.Delete("a.json"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if fs.Exists("a.json") {
		t.Error("删除后条目不应存在")
	}

	// 删除不存在的条目视为成功
	if err := fs.Delete("missing.json"); err != nil {
		t.Errorf("删除缺失条目不应报错: %v", err)
	}
}

func TestLoadMissingEntry(t *testing.T) {
	fs, _ := newTestStorage(t)
	var v map[string]string
	if err := fs.LoadJSON("missing.json", &v); err == nil {
		t.Error("读取缺失条目应返回错误")
	}
}

func TestConcurrentWritesSameKey(t *testing.T) {
	fs, _ := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			fs.SaveJSON("shared.json", map[string]int{"n": n})
		}(i)
	}
	wg.Wait()

	// 任何一次写入胜出都行，文件必须是完整的 JSON
	var v map[string]int
	if err := fs.LoadJSON("shared.json", &v); err != nil {
		t.Fatalf("并发写入后文件应保持完整: %v", err)
	}
}
