package entity

import "testing"

func TestClusterAllocatePort(t *testing.T) {
	c := NewCluster("test.example.com", "node1", "192.0.2.1", 1000)
	c.HighestUsedPort = LastDRBDPort

	tests := []struct {
		name string
		pre  func()
		want int
	}{
		{
			name: "empty pool draws above highest used",
			pre:  func() {},
			want: LastDRBDPort + 1,
		},
		{
			name: "pool hit does not advance highest used",
			pre:  func() { c.AddTCPUDPPort(12345) },
			want: 12345,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.pre()
			got := c.AllocatePort()
			if got != tt.want {
				t.Errorf("AllocatePort() = %d, want %d", got, tt.want)
			}
		})
	}

	if c.HighestUsedPort != LastDRBDPort+1 {
		t.Errorf("HighestUsedPort = %d, want %d (pool hit must not advance it)", c.HighestUsedPort, LastDRBDPort+1)
	}
}

func TestClusterToDictFromDictRoundTrip(t *testing.T) {
	c := NewCluster("test.example.com", "node1", "192.0.2.1", 1000)
	c.AddTag("env:prod")
	c.EnabledDiskTemplates.Add(string(DiskTemplateFile))

	d, err := c.ToDict()
	if err != nil {
		t.Fatalf("ToDict() error = %v", err)
	}

	var round Cluster
	if err := round.FromDict(d); err != nil {
		t.Fatalf("FromDict() error = %v", err)
	}

	if round.ClusterName != c.ClusterName {
		t.Errorf("ClusterName = %q, want %q", round.ClusterName, c.ClusterName)
	}
	if round.UUID != c.UUID {
		t.Errorf("UUID = %q, want %q", round.UUID, c.UUID)
	}
	if !round.Tags.Has("env:prod") {
		t.Errorf("round-tripped cluster lost tag env:prod")
	}
	if !round.EnabledDiskTemplates.Has(string(DiskTemplateFile)) {
		t.Errorf("round-tripped cluster lost enabled_disk_templates entry")
	}
}

func TestClusterUpgradeConfigFillsNilMaps(t *testing.T) {
	c := &Cluster{ClusterName: "legacy.example.com"}
	c.UpgradeConfig()

	if c.TCPUDPPortPool == nil {
		t.Error("TCPUDPPortPool still nil after UpgradeConfig")
	}
	if c.HVParams == nil {
		t.Error("HVParams still nil after UpgradeConfig")
	}
	if c.EnabledDiskTemplates == nil {
		t.Error("EnabledDiskTemplates still nil after UpgradeConfig")
	}
	if c.CandidatePoolSize != 3 {
		t.Errorf("CandidatePoolSize = %d, want default 3", c.CandidatePoolSize)
	}
}
