package safety

import (
	"regexp"
	"strings"
)

// Path extraction is necessarily heuristic: generated scripts are free text,
// not a parsed AST. The extractor only trusts string literals it can resolve
// statically; anything path-shaped that embeds interpolation is reported as
// dynamic so the classifier can refuse it instead of guessing.

var (
	// Quoted absolute paths: "C:\Users\..." or '/Users/...'
	reQuotedPath = regexp.MustCompile(`["']([A-Za-z]:[\\/][^"']*|/[^"']+)["']`)

	// Bare path arguments: -Path C:\Users\x, -Destination /Users/x/Documents
	rePathParam = regexp.MustCompile(`(?i)-(?:Path|LiteralPath|Destination|FilePath|Source|Target)\s+([A-Za-z]:[\\/][^\s"']*|/[^\s"']+|\.{1,2}[\\/][^\s"']*)`)

	// UNC shares: \\server\share
	reUNCPath = regexp.MustCompile(`\\\\[^\s"']+`)

	// Relative fragments: .\reports or ../archive
	reRelPath = regexp.MustCompile(`\.{1,2}[\\/][^\s"']*`)

	// Quoted strings that look like paths but interpolate variables or
	// subexpressions, e.g. "C:\Users\$name" or "$dir/out". Not resolvable
	// statically.
	reQuoted      = regexp.MustCompile(`"[^"]*"`)
	reJoinPathVar = regexp.MustCompile(`(?i)Join-Path\s+[^|\n]*\$`)

	// Bare variables in path position: -Path $profile, -Destination $target.
	// The value is unknowable statically, so these are dynamic, not ignorable.
	// $ followed by a letter or { excludes the pipeline variable $_, which
	// stays legal inside Where-Object/ForEach-Object blocks.
	rePathParamVar = regexp.MustCompile(`(?i)-(?:Path|LiteralPath|Destination|FilePath|Source|Target)\s+\$[A-Za-z{]`)

	// A variable as the bare first argument to a path-taking cmdlet:
	// Get-Content $profile, Remove-Item $target.
	reCmdletVarArg = regexp.MustCompile(`(?i)\b(?:Get-ChildItem|Get-Item|Get-Content|Test-Path|Resolve-Path|Move-Item|Copy-Item|Remove-Item|New-Item|Rename-Item|Set-Content|Add-Content|Out-File|Clear-Content|Set-ItemProperty)\s+\$[A-Za-z{]`)
)

// ExtractPaths returns the ordered, de-duplicated path-like literals found in
// a script, plus a flag indicating that the script builds at least one path
// dynamically (which the classifier must treat as unsafe).
func ExtractPaths(script string) (paths []string, dynamic bool) {
	seen := make(map[string]bool)
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		paths = append(paths, p)
	}

	for _, m := range reQuotedPath.FindAllStringSubmatch(script, -1) {
		add(m[1])
	}
	for _, m := range rePathParam.FindAllStringSubmatch(script, -1) {
		add(m[1])
	}
	for _, m := range reUNCPath.FindAllString(script, -1) {
		add(m)
	}
	for _, m := range reRelPath.FindAllString(script, -1) {
		add(m)
	}

	// Double-quoted strings interpolate in PowerShell. A quoted string that
	// contains both a separator and a $ is a constructed path we cannot
	// resolve.
	for _, q := range reQuoted.FindAllString(script, -1) {
		if strings.ContainsAny(q, `\/`) && strings.Contains(q, "$") {
			dynamic = true
			break
		}
	}
	if !dynamic && reJoinPathVar.MatchString(script) {
		dynamic = true
	}
	if !dynamic && (rePathParamVar.MatchString(script) || reCmdletVarArg.MatchString(script)) {
		dynamic = true
	}

	return paths, dynamic
}
