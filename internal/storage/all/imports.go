// Package all registers every built-in cell sink backend with the storage
// factory. Import it for side effects:
//
//	import _ "hitsflat/internal/storage/all"
package all

import (
	_ "hitsflat/internal/storage/postgres"
	_ "hitsflat/internal/storage/sqlite"
)
