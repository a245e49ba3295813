// Package mirror copies every repository of a GitHub user to local disk.
//
// Mirror.Run lists the user's non-fork repositories and clones each one,
// sequentially, in one of two modes:
//
//   - root mode: a shallow clone of the default branch into
//     <output>/<user>/<repo>
//   - branch mode: a shallow single-branch clone of every branch into
//     <output>/<user>/<repo>/<branch-dir>, where branch-dir is the branch
//     name with "/" replaced by "-"
//
// A destination that already exists counts as cloned and is left alone.
// Failures are counted rather than returned: only a missing username, a
// rate-limited listing or cancellation end a run with an error.
package mirror
