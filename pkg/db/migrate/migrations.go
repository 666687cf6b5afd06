package migrate

var migrations = []Migration{
	createTables,
}
