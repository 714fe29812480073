package safety

import (
	"reflect"
	"testing"
)

func TestExtractPaths_QuotedLiterals(t *testing.T) {
	script := `Get-ChildItem -Path "C:\Users\john\Downloads" | Copy-Item -Destination '/Users/john/Backup'`
	paths, dynamic := ExtractPaths(script)
	if dynamic {
		t.Fatal("no dynamic construction expected")
	}
	want := []string{`C:\Users\john\Downloads`, `/Users/john/Backup`}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestExtractPaths_BareParameters(t *testing.T) {
	script := `Move-Item -Path C:\Users\john\a.txt -Destination C:\Users\john\b.txt`
	paths, _ := ExtractPaths(script)
	want := []string{`C:\Users\john\a.txt`, `C:\Users\john\b.txt`}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestExtractPaths_RelativeAndUNC(t *testing.T) {
	script := `Get-ChildItem .\reports; Get-Item \\fileserver\public\doc.txt`
	paths, _ := ExtractPaths(script)
	want := []string{`\\fileserver\public\doc.txt`, `.\reports`}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("paths = %v, want %v", paths, want)
	}
}

func TestExtractPaths_Deduplicates(t *testing.T) {
	script := `Get-Item "/Users/john/x"; Get-Item "/Users/john/x"`
	paths, _ := ExtractPaths(script)
	if len(paths) != 1 {
		t.Errorf("paths = %v, want one entry", paths)
	}
}

func TestExtractPaths_DynamicInterpolation(t *testing.T) {
	cases := []struct {
		name    string
		script  string
		dynamic bool
	}{
		{"interpolated dir", `Get-ChildItem "C:\Users\$name\Downloads"`, true},
		{"join-path variable", `$out = Join-Path $root "archive"`, true},
		{"variable path parameter", `Get-Content -Path $profile`, true},
		{"variable destination parameter", `Move-Item -Path "/Users/john/a.txt" -Destination $target`, true},
		{"bare variable argument", `Remove-Item $target`, true},
		{"braced variable argument", `Get-Content ${profile}`, true},
		{"pipeline variable in block", `Get-ChildItem "/Users/john" | Where-Object { $_.Length -gt 10 }`, false},
		{"pipeline member access", `Get-ChildItem "/Users/john" | ForEach-Object { $_.FullName }`, false},
		{"single quotes do not interpolate", `Get-ChildItem '/Users/john/$literal'`, false},
		{"plain literal", `Get-ChildItem "/Users/john/Downloads"`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, dynamic := ExtractPaths(tc.script)
			if dynamic != tc.dynamic {
				t.Errorf("dynamic = %v, want %v", dynamic, tc.dynamic)
			}
		})
	}
}

func TestExtractPaths_NoPaths(t *testing.T) {
	paths, dynamic := ExtractPaths(`Write-Output hello`)
	if len(paths) != 0 || dynamic {
		t.Errorf("paths = %v dynamic = %v, want none", paths, dynamic)
	}
}
