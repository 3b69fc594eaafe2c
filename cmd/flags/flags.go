package flags

var (
	Debug bool

	URL         string
	FilePath    string
	ConfigFile  string
	ChunkSize   uint32
	QueueLen    int
	TimeoutSec  int
	TLSVerify   bool
	Loop        bool
	StatsListen string
)
