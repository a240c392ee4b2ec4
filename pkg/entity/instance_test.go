package entity

import "testing"

func newTestInstance() *Instance {
	return NewInstance("test.example.com", "node1", "debootstrap+default", "kvm", DiskTemplatePlain, 1000)
}

func intPtr(v int) *int { return &v }

func TestInstanceAttachDetachDiskRenumbersIVName(t *testing.T) {
	inst := newTestInstance()
	disks := map[string]*Disk{}
	instances := map[string]*Instance{inst.UUID: inst}
	d0 := NewDisk(DiskTemplatePlain, 1<<30, 1000)
	d1 := NewDisk(DiskTemplatePlain, 1<<30, 1000)
	d2 := NewDisk(DiskTemplatePlain, 1<<30, 1000)

	disks[d0.UUID] = d0
	if err := inst.AttachDisk(d0.UUID, nil, disks, instances); err != nil {
		t.Fatalf("AttachDisk(d0) error = %v", err)
	}
	disks[d1.UUID] = d1
	if err := inst.AttachDisk(d1.UUID, nil, disks, instances); err != nil {
		t.Fatalf("AttachDisk(d1) error = %v", err)
	}
	// insert d2 at position 1, pushing d1 to position 2
	disks[d2.UUID] = d2
	if err := inst.AttachDisk(d2.UUID, intPtr(1), disks, instances); err != nil {
		t.Fatalf("AttachDisk(d2, 1) error = %v", err)
	}

	wantOrder := []*Disk{d0, d2, d1}
	for idx, want := range wantOrder {
		gotUUID := inst.Disks[idx]
		if gotUUID != want.UUID {
			t.Errorf("Disks[%d] = %v, want %v", idx, gotUUID, want.UUID)
		}
		got := disks[gotUUID]
		wantIVName := diskIVName(idx)
		if got.IVName != wantIVName {
			t.Errorf("Disks[%d].IVName = %q, want %q", idx, got.IVName, wantIVName)
		}
	}
	if disks[d0.UUID].Instance != inst.UUID {
		t.Errorf("d0.Instance = %q, want %q", disks[d0.UUID].Instance, inst.UUID)
	}

	if err := inst.DetachDisk(d2.UUID, disks); err != nil {
		t.Fatalf("DetachDisk(d2) error = %v", err)
	}
	if disks[d2.UUID].Instance != "" {
		t.Errorf("detached disk still has Instance = %q", disks[d2.UUID].Instance)
	}
	if len(inst.Disks) != 2 {
		t.Fatalf("len(Disks) = %d, want 2", len(inst.Disks))
	}
	if inst.Disks[0] != d0.UUID || inst.Disks[1] != d1.UUID {
		t.Errorf("Disks after detach = %v, want [%s %s]", inst.Disks, d0.UUID, d1.UUID)
	}
	if disks[d1.UUID].IVName != "disk/1" {
		t.Errorf("surviving disk IVName = %q, want disk/1", disks[d1.UUID].IVName)
	}
}

func TestInstanceAttachDiskRejectsAlreadyAttachedElsewhere(t *testing.T) {
	instA := newTestInstance()
	instB := NewInstance("other.example.com", "node1", "debootstrap+default", "kvm", DiskTemplatePlain, 1000)
	disks := map[string]*Disk{}
	instances := map[string]*Instance{instA.UUID: instA, instB.UUID: instB}

	d := NewDisk(DiskTemplatePlain, 1<<30, 1000)
	disks[d.UUID] = d
	if err := instA.AttachDisk(d.UUID, nil, disks, instances); err != nil {
		t.Fatalf("AttachDisk on instA error = %v", err)
	}

	if err := instB.AttachDisk(d.UUID, nil, disks, instances); err == nil {
		t.Error("AttachDisk on instB for a disk already attached to instA: want ReservationError, got nil")
	}
}

func TestInstanceAttachDiskRejectsNegativeIndex(t *testing.T) {
	inst := newTestInstance()
	disks := map[string]*Disk{}
	instances := map[string]*Instance{inst.UUID: inst}
	d := NewDisk(DiskTemplatePlain, 1<<30, 1000)

	if err := inst.AttachDisk(d.UUID, intPtr(-1), disks, instances); err == nil {
		t.Error("AttachDisk with idx=-1: want error, got nil")
	}
}

func TestInstanceAttachDiskRejectsIndexPastEnd(t *testing.T) {
	inst := newTestInstance()
	disks := map[string]*Disk{}
	instances := map[string]*Instance{inst.UUID: inst}
	d := NewDisk(DiskTemplatePlain, 1<<30, 1000)

	if err := inst.AttachDisk(d.UUID, intPtr(1), disks, instances); err == nil {
		t.Error("AttachDisk with idx past end of empty disk list: want error, got nil")
	}
}

func TestInstanceDetachDiskNotAttached(t *testing.T) {
	inst := newTestInstance()
	disks := map[string]*Disk{}
	if err := inst.DetachDisk("nonexistent-uuid", disks); err == nil {
		t.Error("DetachDisk for an unattached UUID: want ProgrammerError, got nil")
	}
}

func TestInstanceUpgradeConfigFillsDefaults(t *testing.T) {
	inst := newTestInstance()
	inst.Tags = nil
	inst.AdminStateSource = ""

	inst.UpgradeConfig()

	if inst.Tags == nil {
		t.Error("Tags still nil after UpgradeConfig")
	}
	if inst.AdminStateSource != AdminSourceAdmin {
		t.Errorf("AdminStateSource = %q, want default %q", inst.AdminStateSource, AdminSourceAdmin)
	}
}
