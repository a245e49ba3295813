package mirror

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
)

const collisionSuffixLen = 8

// BranchDir is the directory a branch is cloned into
type BranchDir struct {
	Branch string
	Dir    string

	// CollidesWith names the earlier branch whose directory Dir would have
	// shared; empty when the plain name was free.
	CollidesWith string
}

// BranchDirName maps a branch name to a single path segment
func BranchDirName(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// PlanBranchDirs assigns a distinct directory to every branch, in order. A
// branch whose plain directory name is already taken gets "-" and the first
// eight hex digits of the SHA-1 of its full name appended.
func PlanBranchDirs(branches []string) []BranchDir {
	owners := make(map[string]string, len(branches))
	plan := make([]BranchDir, 0, len(branches))

	for _, branch := range branches {
		entry := BranchDir{Branch: branch, Dir: BranchDirName(branch)}
		if owner, taken := owners[entry.Dir]; taken {
			entry.CollidesWith = owner
			sum := sha1.Sum([]byte(branch))
			base := entry.Dir + "-" + hex.EncodeToString(sum[:])[:collisionSuffixLen]
			entry.Dir = base
			for n := 2; ; n++ {
				if _, taken := owners[entry.Dir]; !taken {
					break
				}
				entry.Dir = base + "-" + strconv.Itoa(n)
			}
		}
		owners[entry.Dir] = branch
		plan = append(plan, entry)
	}
	return plan
}
