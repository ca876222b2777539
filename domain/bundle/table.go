package bundle

// Bundle identifiers.
const (
	Framework         = "FrameworkBundle"
	Security          = "SecurityBundle"
	Twig              = "TwigBundle"
	Monolog           = "MonologBundle"
	WebProfiler       = "WebProfilerBundle"
	Debug             = "DebugBundle"
	Maker             = "MakerBundle"
	Doctrine          = "DoctrineBundle"
	DoctrineMigration = "DoctrineMigrationsBundle"
	DoctrineFixtures  = "DoctrineFixturesBundle"
	DoctrineMongoDB   = "DoctrineMongoDBBundle"
)

// DefaultTable returns the application's bundle table.
func DefaultTable() Table {
	return Table{
		{ID: Framework, Profile: ProfileShared, Rule: All()},
		{ID: Security, Profile: ProfileShared, Rule: All()},
		{ID: Twig, Profile: ProfileShared, Rule: All()},
		{ID: Monolog, Profile: ProfileShared, Rule: All()},
		{ID: WebProfiler, Profile: ProfileShared, Rule: Only("dev", "test")},
		{ID: Debug, Profile: ProfileShared, Rule: Only("dev", "test")},
		{ID: Maker, Profile: ProfileShared, Rule: Only("dev")},

		{ID: Doctrine, Profile: ProfileRelational, Rule: All()},
		{ID: DoctrineMigration, Profile: ProfileRelational, Rule: All()},
		{ID: DoctrineFixtures, Profile: ProfileRelational, Rule: Only("dev", "test")},

		{ID: DoctrineMongoDB, Profile: ProfileDocument, Rule: All()},
	}
}
