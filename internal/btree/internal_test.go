package btree

import "testing"

func TestInternalInsertAndLocate(t *testing.T) {
	buf := make([]byte, internalSize(3))
	node := WrapInternal(buf, 3)
	node.InitRoot(100, 20, 200)

	if got := node.LocateChildPtr(10); got != 100 {
		t.Fatalf("LocateChildPtr(10) = %d, want 100", got)
	}
	if got := node.LocateChildPtr(20); got != 200 {
		t.Fatalf("LocateChildPtr(20) = %d, want 200 (equal key routes right)", got)
	}
	if got := node.LocateChildPtr(30); got != 200 {
		t.Fatalf("LocateChildPtr(30) = %d, want 200", got)
	}

	if err := node.Insert(30, 300); err != nil {
		t.Fatalf("Insert(30,300): %v", err)
	}
	if got := node.LocateChildPtr(25); got != 200 {
		t.Fatalf("LocateChildPtr(25) = %d, want 200", got)
	}
	if got := node.LocateChildPtr(35); got != 300 {
		t.Fatalf("LocateChildPtr(35) = %d, want 300", got)
	}
}

func TestInternalInsertAndSplit(t *testing.T) {
	buf := make([]byte, internalSize(3))
	node := WrapInternal(buf, 3)
	node.InitRoot(1, 10, 2)
	if err := node.Insert(20, 3); err != nil {
		t.Fatalf("Insert(20,3): %v", err)
	}
	if err := node.Insert(30, 4); err != nil {
		t.Fatalf("Insert(30,4): %v", err)
	}
	// node now full: keys [10,20,30] pids [1,2,3,4]

	sibBuf := make([]byte, internalSize(3))
	sibling := WrapInternal(sibBuf, 3)
	midKey := node.InsertAndSplit(40, 5, sibling)

	if midKey != 30 {
		t.Fatalf("midKey = %d, want 30 (promoted, not kept on either side)", midKey)
	}
	if node.KeyCount() != 2 || node.Key(0) != 10 || node.Key(1) != 20 {
		t.Fatalf("left keys = %v, want [10 20]", []int32{node.Key(0), node.Key(1)})
	}
	if node.Pid(0) != 1 || node.Pid(1) != 2 || node.Pid(2) != 3 {
		t.Fatalf("left pids wrong: %d %d %d", node.Pid(0), node.Pid(1), node.Pid(2))
	}
	if sibling.KeyCount() != 1 || sibling.Key(0) != 40 {
		t.Fatalf("right keys = %v, want [40]", []int32{sibling.Key(0)})
	}
	if sibling.Pid(0) != 4 || sibling.Pid(1) != 5 {
		t.Fatalf("right pids wrong: %d %d", sibling.Pid(0), sibling.Pid(1))
	}
}
