// Package descriptor reads and writes module descriptor files.
//
// A descriptor file (module.star) is a list of Starlark calls parsed with
// buildtools:
//
//	module(organisation = "acme", name = "lib", revision = "1.0", status = "release", publication = "20260101120000")
//	configuration(name = "compile")
//	configuration(name = "runtime", extends = ["compile"])
//	artifact(name = "lib", type = "jar", ext = "jar", confs = ["compile"])
//	dependency(org = "acme", name = "util", rev = "2.0", conf = "compile->default")
//	exclude(dependency = "acme#util", org = "acme", module = "legacy")
//	conflict(org = "*", module = "*", matcher = "exact", manager = "latest-revision")
//
// Unknown calls are ignored so files can carry comments and helper
// statements without breaking older readers.
package descriptor
